package main

import (
	"fmt"
	"log"
	"os"

	"github.com/minireldb/btreeindex/btreeindex"
	"github.com/minireldb/btreeindex/buffer"
	"github.com/minireldb/btreeindex/common"
)

func main() {
	dataDir := "./data-btreeindex"
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dataDir)

	cfg := common.DefaultConfig(dataDir)
	bufMgr, err := buffer.New(cfg.NumBufs, common.PageSize, common.NewNopLogger())
	if err != nil {
		log.Fatal(err)
	}

	salaries := []int32{52000, 61000, 48000, 73000, 55000, 91000, 60000}
	values := make([]any, len(salaries))
	rids := make([]common.RecordId, len(salaries))
	for i, salary := range salaries {
		values[i] = salary
		rids[i] = common.RecordId{PageNo: 1, SlotNo: uint32(i)}
	}
	scanner := common.NewSliceScanner(values, rids)

	name, idx, err := btreeindex.OpenIndex(dataDir, "employee", 4, common.Int, bufMgr, common.NewNopLogger(), scanner)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()
	fmt.Printf("opened index file %s, bulk-loaded from the base relation\n", name)
	fmt.Println("\n[bulk-loaded entries]")
	for i, salary := range salaries {
		fmt.Printf("  INSERT %d -> %+v\n", salary, rids[i])
	}

	fmt.Println("\n[range scan: 55000 <= salary <= 80000]")
	if err := idx.StartScan(int32(55000), common.GTE, int32(80000), common.LTE); err != nil {
		log.Fatal(err)
	}
	for {
		rid, err := idx.ScanNext()
		if err == common.ErrIndexScanCompleted {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  MATCH -> %+v\n", rid)
	}
	if err := idx.EndScan(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("\n[deleting 61000]")
	found, err := idx.DeleteEntry(int32(61000))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  DELETE 61000 -> found=%v\n", found)
}
