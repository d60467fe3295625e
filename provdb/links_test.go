package provdb

import (
	"testing"
	"time"
)

func openTestDB(t *testing.T, maxLinks int) *DB {
	t.Helper()

	db, err := Open(&Config{Dir: t.TempDir(), MaxLinks: maxLinks})
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestLastOfEmptyHistory(t *testing.T) {
	db := openTestDB(t, 0)

	record, err := db.Last()
	if err != nil {
		t.Fatalf("could not get last record: %v", err)
	}

	if record != nil {
		t.Fatalf("expected no record, got %+v", record)
	}
}

func TestHistoryOrder(t *testing.T) {
	db := openTestDB(t, 0)

	start := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)
	states := []string{"CONNECTED", "DISCONNECTED", "CONNECT_FAILED"}

	for i, state := range states {
		err := db.AddLinkRecord(&LinkRecord{
			Time:  start.Add(time.Duration(i) * time.Minute),
			State: state,
			SSID:  "Home",
		})
		if err != nil {
			t.Fatalf("could not add record: %v", err)
		}
	}

	records, err := db.History(2)
	if err != nil {
		t.Fatalf("could not get history: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].State != "DISCONNECTED" || records[1].State != "CONNECT_FAILED" {
		t.Fatalf("unexpected order %v, %v", records[0].State, records[1].State)
	}

	if !records[1].Time.Equal(start.Add(2 * time.Minute)) {
		t.Fatalf("expected time to survive storage, got %v", records[1].Time)
	}

	last, err := db.Last()
	if err != nil {
		t.Fatalf("could not get last record: %v", err)
	}

	if last.State != "CONNECT_FAILED" || last.SSID != "Home" {
		t.Fatalf("unexpected last record %+v", last)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	db := openTestDB(t, 3)

	for i := 0; i < 5; i++ {
		err := db.AddLinkRecord(&LinkRecord{
			Time:  time.Now().UTC(),
			State: "DISCONNECTED",
			SSID:  string(rune('a' + i)),
		})
		if err != nil {
			t.Fatalf("could not add record: %v", err)
		}
	}

	records, err := db.History(10)
	if err != nil {
		t.Fatalf("could not get history: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	if records[0].SSID != "c" || records[2].SSID != "e" {
		t.Fatalf("expected the oldest records to be pruned, got %v..%v", records[0].SSID, records[2].SSID)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(&Config{Dir: dir})
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}

	err = db.AddLinkRecord(&LinkRecord{Time: time.Now().UTC(), State: "CONNECTED", SSID: "Home"})
	if err != nil {
		t.Fatalf("could not add record: %v", err)
	}

	_ = db.Close()

	db, err = Open(&Config{Dir: dir})
	if err != nil {
		t.Fatalf("could not reopen db: %v", err)
	}
	defer db.Close()

	last, err := db.Last()
	if err != nil || last == nil || last.SSID != "Home" {
		t.Fatalf("expected the record to survive a reopen, got %+v %v", last, err)
	}
}

func TestSmallerBoundPrunesOnReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(&Config{Dir: dir, MaxLinks: 10})
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}

	for i := 0; i < 6; i++ {
		err := db.AddLinkRecord(&LinkRecord{Time: time.Now().UTC(), State: "CONNECTED", SSID: string(rune('a' + i))})
		if err != nil {
			t.Fatalf("could not add record: %v", err)
		}
	}

	_ = db.Close()

	db, err = Open(&Config{Dir: dir, MaxLinks: 2})
	if err != nil {
		t.Fatalf("could not reopen db: %v", err)
	}
	defer db.Close()

	err = db.AddLinkRecord(&LinkRecord{Time: time.Now().UTC(), State: "DISCONNECTED", SSID: "g"})
	if err != nil {
		t.Fatalf("could not add record: %v", err)
	}

	records, err := db.History(10)
	if err != nil {
		t.Fatalf("could not get history: %v", err)
	}

	if len(records) != 2 || records[0].SSID != "f" || records[1].SSID != "g" {
		t.Fatalf("expected only the two newest records, got %d", len(records))
	}
}
