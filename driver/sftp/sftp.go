package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"net"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gobeaver/resfs"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Device provides an SFTP implementation of resfs.Device
type Device struct {
	mu      sync.Mutex
	client  *sftp.Client
	sshConn *ssh.Client
	root    string
	addr    string
	user    string
}

// Config holds SFTP connection configuration
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	PrivateKey []byte // PEM encoded private key
	KnownHosts string // known_hosts file; host keys are not checked when empty
	Root       string
}

// Dial connects to the server described by cfg.
func Dial(cfg Config) (*Device, error) {
	sshConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	if cfg.KnownHosts != "" {
		callback, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		sshConfig.HostKeyCallback = callback
	}

	// Add authentication method
	if len(cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		sshConfig.Auth = append(sshConfig.Auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		sshConfig.Auth = append(sshConfig.Auth, ssh.Password(cfg.Password))
	}
	if len(sshConfig.Auth) == 0 {
		return nil, fmt.Errorf("no authentication method provided")
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	sshConn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSH: %w", err)
	}
	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}

	d := New(client, cfg.Root)
	d.sshConn = sshConn
	d.addr = addr
	d.user = cfg.Username
	return d, nil
}

// New wraps an established SFTP client. Paths are resolved below root, which
// defaults to "/".
func New(client *sftp.Client, root string) *Device {
	root = path.Clean("/" + root)
	return &Device{client: client, root: root}
}

// Close closes the SFTP session and, for dialed devices, the SSH connection.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.client != nil {
		if err := d.client.Close(); err != nil {
			errs = append(errs, err)
		}
		d.client = nil
	}
	if d.sshConn != nil {
		if err := d.sshConn.Close(); err != nil {
			errs = append(errs, err)
		}
		d.sshConn = nil
	}
	return errors.Join(errs...)
}

// conn returns the live client or an error once the device is closed.
func (d *Device) conn(op, p string) (*sftp.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil, &resfs.PathError{Op: op, Path: p, Err: errors.New("sftp: device closed")}
	}
	return d.client, nil
}

// fullPath maps a device path below the root, refusing anything that
// escapes it.
func (d *Device) fullPath(op, p string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if clean == "." {
		return d.root, nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &resfs.PathError{Op: op, Path: p, Err: resfs.ErrNotAllowed}
	}
	return path.Join(d.root, clean), nil
}

func (d *Device) prepare(ctx context.Context, op, p string) (*sftp.Client, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	default:
	}
	client, err := d.conn(op, p)
	if err != nil {
		return nil, "", err
	}
	full, err := d.fullPath(op, p)
	if err != nil {
		return nil, "", err
	}
	return client, full, nil
}

// Read implements resfs.DeviceReader
func (d *Device) Read(ctx context.Context, p string) ([]byte, error) {
	client, full, err := d.prepare(ctx, "read", p)
	if err != nil {
		return nil, err
	}

	info, err := client.Stat(full)
	if err != nil {
		return nil, mapSFTPError("read", p, err)
	}
	if info.IsDir() {
		return nil, &resfs.PathError{Op: "read", Path: p, Err: resfs.ErrIsDir}
	}

	file, err := client.Open(full)
	if err != nil {
		return nil, mapSFTPError("read", p, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, mapSFTPError("read", p, err)
	}
	return data, nil
}

// Size implements resfs.DeviceReader
func (d *Device) Size(ctx context.Context, p string) (int64, error) {
	client, full, err := d.prepare(ctx, "size", p)
	if err != nil {
		return 0, err
	}
	info, err := client.Stat(full)
	if err != nil {
		return 0, mapSFTPError("size", p, err)
	}
	if info.IsDir() {
		return 0, &resfs.PathError{Op: "size", Path: p, Err: resfs.ErrIsDir}
	}
	return info.Size(), nil
}

func (d *Device) stat(ctx context.Context, p string) (fs.FileInfo, bool) {
	client, full, err := d.prepare(ctx, "stat", p)
	if err != nil {
		return nil, false
	}
	info, err := client.Stat(full)
	if err != nil {
		return nil, false
	}
	return info, true
}

// Exists implements resfs.DeviceReader
func (d *Device) Exists(ctx context.Context, p string) bool {
	_, ok := d.stat(ctx, p)
	return ok
}

// IsFile implements resfs.DeviceReader
func (d *Device) IsFile(ctx context.Context, p string) bool {
	info, ok := d.stat(ctx, p)
	return ok && info.Mode().IsRegular()
}

// IsDir implements resfs.DeviceReader
func (d *Device) IsDir(ctx context.Context, p string) bool {
	info, ok := d.stat(ctx, p)
	return ok && info.IsDir()
}

// List implements resfs.DeviceReader. The directory is read when iteration
// starts.
func (d *Device) List(ctx context.Context, p string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		client, full, err := d.prepare(ctx, "list", p)
		if err != nil {
			yield("", err)
			return
		}

		entries, err := client.ReadDir(full)
		if err != nil {
			yield("", mapSFTPError("list", p, err))
			return
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			if !yield(name, nil) {
				return
			}
		}
	}
}

// Resolve implements resfs.DeviceReader. Dialed devices return an sftp URL,
// devices built from a client return the remote path.
func (d *Device) Resolve(p string) (string, error) {
	full, err := d.fullPath("resolve", p)
	if err != nil {
		return "", err
	}
	if d.addr == "" {
		return full, nil
	}
	if d.user != "" {
		return "sftp://" + d.user + "@" + d.addr + full, nil
	}
	return "sftp://" + d.addr + full, nil
}

// Write implements resfs.DeviceWriter
func (d *Device) Write(ctx context.Context, p string, data []byte) error {
	client, full, err := d.prepare(ctx, "write", p)
	if err != nil {
		return err
	}
	if full == d.root {
		return &resfs.PathError{Op: "write", Path: p, Err: resfs.ErrIsDir}
	}

	// Ensure parent directory exists
	if err := client.MkdirAll(path.Dir(full)); err != nil {
		return mapSFTPError("write", p, err)
	}

	file, err := client.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return mapSFTPError("write", p, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return mapSFTPError("write", p, err)
	}
	if err := file.Close(); err != nil {
		return mapSFTPError("write", p, err)
	}
	return nil
}

// MkdirAll implements resfs.DeviceWriter
func (d *Device) MkdirAll(ctx context.Context, p string) error {
	client, full, err := d.prepare(ctx, "mkdir", p)
	if err != nil {
		return err
	}
	if err := client.MkdirAll(full); err != nil {
		return mapSFTPError("mkdir", p, err)
	}
	return nil
}

// Remove implements resfs.DeviceWriter
func (d *Device) Remove(ctx context.Context, p string) (bool, error) {
	client, full, err := d.prepare(ctx, "remove", p)
	if err != nil {
		return false, err
	}
	if full == d.root {
		return false, &resfs.PathError{Op: "remove", Path: p, Err: resfs.ErrNotAllowed}
	}

	info, err := client.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, mapSFTPError("remove", p, err)
	}

	if info.IsDir() {
		err = client.RemoveDirectory(full)
	} else {
		err = client.Remove(full)
	}
	if err != nil {
		return false, mapSFTPError("remove", p, err)
	}
	return true, nil
}

// RemoveAll implements resfs.DeviceWriter. Removing the root empties it but
// keeps the directory itself.
func (d *Device) RemoveAll(ctx context.Context, p string) (int64, error) {
	client, full, err := d.prepare(ctx, "removeall", p)
	if err != nil {
		return 0, err
	}

	info, err := client.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, mapSFTPError("removeall", p, err)
	}

	var count int64
	if info.IsDir() {
		if err := removeChildren(ctx, client, full, &count); err != nil {
			return count, mapSFTPError("removeall", p, err)
		}
		if full == d.root {
			return count, nil
		}
		err = client.RemoveDirectory(full)
	} else {
		err = client.Remove(full)
	}
	if err != nil {
		return count, mapSFTPError("removeall", p, err)
	}
	return count + 1, nil
}

func removeChildren(ctx context.Context, client *sftp.Client, dir string, count *int64) error {
	entries, err := client.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		child := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := removeChildren(ctx, client, child, count); err != nil {
				return err
			}
			err = client.RemoveDirectory(child)
		} else {
			err = client.Remove(child)
		}
		if err != nil {
			return err
		}
		*count++
	}
	return nil
}

// Checksum implements resfs.CanChecksum by streaming the remote file through the hash.
func (d *Device) Checksum(ctx context.Context, p string) (string, error) {
	client, full, err := d.prepare(ctx, "checksum", p)
	if err != nil {
		return "", err
	}
	file, err := client.Open(full)
	if err != nil {
		return "", mapSFTPError("checksum", p, err)
	}
	defer file.Close()

	sum, err := resfs.ChecksumReader(file)
	if err != nil {
		return "", mapSFTPError("checksum", p, err)
	}
	return sum, nil
}

// mapSFTPError maps SFTP errors to resfs errors
func mapSFTPError(op, p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &resfs.PathError{Op: op, Path: p, Err: resfs.ErrNotExist}
	case errors.Is(err, fs.ErrPermission):
		return &resfs.PathError{Op: op, Path: p, Err: resfs.ErrNotAllowed}
	}
	return &resfs.PathError{Op: op, Path: p, Err: err}
}

// Ensure Device implements interfaces
var (
	_ resfs.Device      = (*Device)(nil)
	_ resfs.CanChecksum = (*Device)(nil)
)
