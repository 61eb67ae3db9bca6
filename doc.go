// Package coredbx is an embedded, transactional key-value storage engine.
//
// It keeps a copy-on-write B+tree on fixed-size pages inside a single
// memory-mapped file, gives every reader a consistent MVCC snapshot, and
// anchors crash recovery with a rotating triplet of meta-pages. The on-disk
// layout follows the MDBX format, so existing MDBX data files can be opened
// and manipulated directly.
//
// Key features:
//   - B+ tree data structure for efficient key-value storage
//   - MVCC (Multi-Version Concurrency Control) for concurrent reads
//   - Single writer, multiple readers concurrency model
//   - Memory-mapped I/O for high performance
//   - ACID transactions with crash recovery
//   - Nested transaction infrastructure (parent page delegation)
//
// Basic usage:
//
//	env, err := coredbx.NewEnv(coredbx.Default)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	err = env.Open("/path/to/db", coredbx.NoSubdir, 0644)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Begin a write transaction
//	txn, err := env.BeginTxn(nil, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Open the default database
//	dbi, err := txn.OpenDBISimple("", coredbx.Create)
//	if err != nil {
//	    txn.Abort()
//	    log.Fatal(err)
//	}
//
//	// Put a key-value pair
//	err = txn.Put(dbi, []byte("key"), []byte("value"), 0)
//	if err != nil {
//	    txn.Abort()
//	    log.Fatal(err)
//	}
//
//	_, err = txn.Commit()
//	if err != nil {
//	    log.Fatal(err)
//	}
package coredbx
