package resfs

import (
	"context"
	"encoding/hex"
	"errors"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Checksum returns the hex-encoded xxHash64 of data. Devices implementing
// CanChecksum must produce the same value.
func Checksum(data []byte) string {
	var buf [8]byte
	d := xxhash.New()
	_, _ = d.Write(data)
	return hex.EncodeToString(d.Sum(buf[:0]))
}

// ChecksumReader hashes everything read from r.
func ChecksumReader(r io.Reader) (string, error) {
	var buf [8]byte
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(buf[:0])), nil
}

// Checksum returns the content checksum of the file at p. Devices that can
// compute it natively are asked first; otherwise the file is read and hashed.
func (r *Registry) Checksum(ctx context.Context, p Path) (string, error) {
	dev, err := r.requirePath("checksum", p)
	if err != nil {
		return "", err
	}

	if cs, ok := dev.(CanChecksum); ok {
		sum, err := cs.Checksum(ctx, p.PathPart())
		if err == nil {
			return sum, nil
		}
		if !errors.Is(err, ErrNotSupported) {
			return "", deviceError("checksum", p, err)
		}
	}

	data, err := dev.Read(ctx, p.PathPart())
	if err != nil {
		return "", deviceError("checksum", p, err)
	}
	return Checksum(data), nil
}
