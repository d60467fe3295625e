package main

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/provd/connectivity"
	"github.com/the-lightning-land/provd/provdb"
)

const historyBacklog = 16

// historyRecorder writes link transitions to provd.db off the link
// event goroutine.
type historyRecorder struct {
	db     *provdb.DB
	ssid   func() string
	states chan *provdb.LinkRecord
	done   chan struct{}
	wg     sync.WaitGroup
}

func newHistoryRecorder(db *provdb.DB, ssid func() string) *historyRecorder {
	return &historyRecorder{
		db:     db,
		ssid:   ssid,
		states: make(chan *provdb.LinkRecord, historyBacklog),
		done:   make(chan struct{}),
	}
}

func (h *historyRecorder) HandleStateChange(state connectivity.State) {
	record := &provdb.LinkRecord{
		Time:  time.Now().UTC(),
		State: state.String(),
		SSID:  h.ssid(),
	}

	select {
	case h.states <- record:
	default:
		log.Warnf("Dropping link record %v", state)
	}
}

func (h *historyRecorder) start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		for {
			select {
			case record := <-h.states:
				err := h.db.AddLinkRecord(record)
				if err != nil {
					log.Errorf("Could not save link record: %v", err)
				}
			case <-h.done:
				return
			}
		}
	}()
}

func (h *historyRecorder) stop() {
	close(h.done)
	h.wg.Wait()
}
