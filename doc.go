// Package resfs provides a virtual filesystem for engine resources: a uniform
// "entry_point:relative/path" addressing scheme over storage devices mounted by
// name, plus decoding of structured data files selected by extension.
//
// # Addresses
//
// A [Path] splits at its first colon into an entry point (the mount name) and
// a path part handed to the device:
//
//	p := resfs.NewPath(`res:textures\block.png`)
//	p.EntryPoint() // "res"
//	p.PathPart()   // "textures/block.png"
//	p.Extension()  // ".png"
//	p.Parent()     // res:textures
//
// # Devices
//
// Any backend implementing [Device] can be mounted. Drivers live in their own
// packages and register factories for mount tables:
//
//   - Local filesystem (github.com/gobeaver/resfs/driver/local)
//   - In-memory (github.com/gobeaver/resfs/driver/memory)
//   - ZIP archives, read-only (github.com/gobeaver/resfs/driver/zip)
//   - Amazon S3 (github.com/gobeaver/resfs/driver/s3)
//   - Google Cloud Storage (github.com/gobeaver/resfs/driver/gcs)
//   - Azure Blob Storage (github.com/gobeaver/resfs/driver/azure)
//   - SFTP (github.com/gobeaver/resfs/driver/sftp)
//   - go-billy filesystems (github.com/gobeaver/resfs/driver/billy)
//
// A [SubDevice] exposes a directory of another device as a mount of its own:
//
//	reg := resfs.NewRegistry()
//	reg.Mount("data", dataDevice)
//	reg.MountSub("user", "data", resfs.NewPath("data:profiles/user1"))
//
// # Soft and Hard Operations
//
// Existence queries ([Registry.Exists], [Registry.IsFile], [Registry.IsDir])
// never fail: an unmounted entry point simply means "does not exist".
// Everything that reads, writes or reports a size fails with an error wrapping
// [ErrDeviceNotFound] when the entry point is not mounted:
//
//	if reg.Exists(ctx, p) {
//	    data, err := reg.ReadBytes(ctx, p)
//	}
//
//	_, err := reg.ReadBytes(ctx, resfs.NewPath("missing:x"))
//	resfs.IsDeviceNotFound(err) // true
//
// # Structured Data
//
// [Registry.ReadStructured] picks a decoder by extension (.json, .toml, .yaml,
// .yml and .cue by default) and returns the decoded tree. Decoder failures
// are reported as [*FormatError] carrying the decoder's diagnostic:
//
//	v, err := reg.ReadStructured(ctx, resfs.NewPath("res:blocks/stone.toml"))
//	var ferr *resfs.FormatError
//	if errors.As(err, &ferr) {
//	    fmt.Println(ferr.Log)
//	}
//
// # Configuration
//
// A registry can be built from environment variables (BEAVER_RESFS_ prefix)
// and an optional mount table file:
//
//	reg, err := resfs.NewFromEnv(resfs.WithLogger(slog.Default()))
package resfs
