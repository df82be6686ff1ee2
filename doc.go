// Package filegate is an admission gate for untrusted uploads. Each upload
// is fetched from an incoming bucket, validated by the filevalidator
// package, moved to a validated or quarantine bucket with its verdict
// attached as object tags, recorded for audit and announced to a notifier.
//
// Storage follows interface segregation: the gate only needs [FileReader]
// to fetch, while relocation uses the full [FileSystem] plus optional
// capabilities ([CanMove], [CanCopy], [CanTag], [CanChecksum], [CanWatch])
// discovered by type assertion.
//
// # Storage Backends
//
// Drivers register themselves when imported:
//
//   - In-memory (github.com/gobeaver/filegate/driver/memory)
//   - Local filesystem (github.com/gobeaver/filegate/driver/local)
//   - Amazon S3 (github.com/gobeaver/filegate/driver/s3)
//
// # Basic Usage
//
//	import (
//	    "github.com/gobeaver/filegate"
//	    _ "github.com/gobeaver/filegate/driver/local"
//	    _ "github.com/gobeaver/filegate/notify"
//	    _ "github.com/gobeaver/filegate/store"
//	)
//
//	svc, err := filegate.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	d, err := svc.Gate.Admit(ctx, filegate.Upload{
//	    Bucket:           "incoming",
//	    Key:              "2024/06/invoice-0042.pdf",
//	    OriginalFilename: "invoice-0042.pdf",
//	    DocumentCategory: "invoice",
//	})
//	if err != nil {
//	    // collaborator failures: d is still the verdict
//	}
//	if !d.Admitted() {
//	    log.Println(d.Result.Errors)
//	}
//
// # Manual Wiring
//
//	buckets := filegate.NewBuckets()
//	buckets.Mount("incoming", memory.New())
//	relocator, _ := filegate.NewRelocator(
//	    filegate.Namespace{FS: validatedFS, Bucket: "validated"},
//	    filegate.Namespace{FS: quarantineFS, Bucket: "quarantine"},
//	)
//	gate, _ := filegate.NewGate(buckets, filevalidator.NewDefault(),
//	    filegate.WithRelocator(relocator),
//	    filegate.WithRecordStore(store.NewMemory()),
//	    filegate.WithMiddleware(filegate.Tracing(otel.Tracer("filegate"))),
//	)
//
// # Configuration
//
// [GetConfig] reads FILEGATE_* environment variables. See [Config] for the
// full list; the defaults admit invoices (PDF, JPEG, PNG, TIFF, CSV, XLS,
// XLSX) up to 50 MiB with threat scanning and fingerprinting enabled.
//
// # Watching an Inbox
//
//	inbox, _ := svc.Inbox(filegate.WithInboxPattern("*.pdf"))
//	err := inbox.Run(ctx) // blocks until ctx is done
package filegate
