// Package pebblestore is the thin Pebble layer under the persistent queue
// store. It owns the fsync policy, batch commits and timing hooks, and has no
// notion of queues or messages.
//
//	mode, _ := pebblestore.ParseFsyncMode("interval")
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir:       dir,
//	    Fsync:         mode,
//	    FsyncInterval: 5 * time.Millisecond,
//	    Metrics:       hook,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
package pebblestore
