package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/gobeaver/resfs"
)

// mounts

func mountsAction(c *cli.Context) error {
	reg := registry(c)
	devices := reg.Devices()
	for _, name := range reg.Names() {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", name, describeDevice(devices[name]))
	}
	return nil
}

func describeDevice(dev resfs.Device) string {
	var flags []string
	if ro, ok := dev.(resfs.ReadOnly); ok && ro.IsReadOnly() {
		flags = append(flags, "ro")
	}
	desc := fmt.Sprintf("%T", dev)
	if sub, ok := dev.(*resfs.SubDevice); ok {
		desc = fmt.Sprintf("%s -> %T:%s", desc, sub.Parent(), sub.Root())
	}
	if len(flags) > 0 {
		desc += " (" + strings.Join(flags, ",") + ")"
	}
	return desc
}

func driversAction(c *cli.Context) error {
	for _, name := range resfs.Drivers() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

// ls

func lsAction(c *cli.Context) error {
	reg := registry(c)
	dir, err := pathArg(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	var selectors []resfs.Selector
	if g := c.String("glob"); g != "" {
		sel, err := resfs.ParseGlob(g)
		if err != nil {
			return err
		}
		selectors = append(selectors, sel)
	}
	if m := c.String("match"); m != "" {
		sel, err := resfs.ParseMatch(m)
		if err != nil {
			return err
		}
		selectors = append(selectors, sel)
	}
	if c.Bool("data") {
		selectors = append(selectors, resfs.DataFiles(reg))
	}

	if len(selectors) == 0 && !c.Bool("recursive") {
		it, err := reg.List(ctx, dir)
		if err != nil {
			return err
		}
		defer it.Close()
		for name, err := range it.All() {
			if err != nil {
				return errors.Wrapf(err, "couldn't list %s", dir)
			}
			if reg.IsDir(ctx, dir.Join(name)) {
				name += "/"
			}
			fprintln(c.App.Writer, name)
		}
		return nil
	}

	paths, err := reg.Find(ctx, dir, resfs.And(selectors...), c.Bool("recursive"))
	if err != nil {
		return errors.Wrapf(err, "couldn't search %s", dir)
	}
	for _, p := range paths {
		fprintln(c.App.Writer, p)
	}
	return nil
}

// cat

func catAction(c *cli.Context) error {
	p, err := pathArg(c)
	if err != nil {
		return err
	}
	data, err := registry(c).ReadBytes(c.Context, p)
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}

// stat

func statAction(c *cli.Context) error {
	reg := registry(c)
	p, err := pathArg(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	w := c.App.Writer

	if _, err := reg.Require(p.EntryPoint()); err != nil {
		return err
	}
	fmt.Fprintf(w, "Path: %s\n", p)
	if native, err := reg.Resolve(p); err == nil {
		fmt.Fprintf(w, "Native: %s\n", native)
	}

	switch {
	case reg.IsDir(ctx, p):
		fmt.Fprintln(w, "Type: directory")
		return nil
	case reg.IsFile(ctx, p):
		fmt.Fprintln(w, "Type: file")
	default:
		return errors.Errorf("%s does not exist", p)
	}

	size, err := reg.Size(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Size: %s (%d bytes)\n", humanize.IBytes(uint64(size)), size)

	if ct, err := reg.ContentType(ctx, p); err == nil {
		fmt.Fprintf(w, "Content-Type: %s\n", ct)
	}
	if reg.IsDataFile(p) {
		fmt.Fprintln(w, "Structured: yes")
	}
	sum, err := reg.Checksum(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Checksum: xxh64:%s\n", sum)
	return nil
}

// decode

func decodeAction(c *cli.Context) error {
	p, err := pathArg(c)
	if err != nil {
		return err
	}
	v, err := registry(c).ReadStructured(c.Context, p)
	if err != nil {
		var ferr *resfs.FormatError
		if errors.As(err, &ferr) {
			fmt.Fprintln(c.App.ErrWriter, ferr.Log)
		}
		return err
	}
	return printValue(c.App.Writer, v, c.String("output"))
}

func printValue(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

// mkdir

func mkdirAction(c *cli.Context) error {
	p, err := pathArg(c)
	if err != nil {
		return err
	}
	created, err := registry(c).MkdirAll(c.Context, p)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(c.App.Writer, "%s already exists\n", p)
	}
	return nil
}

// write

func writeAction(c *cli.Context) error {
	p, err := pathArg(c)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return errors.Wrap(err, "couldn't read standard input")
	}
	return registry(c).WriteBytes(c.Context, p, data)
}

// rm

func rmAction(c *cli.Context) error {
	reg := registry(c)
	p, err := pathArg(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	if c.Bool("recursive") {
		n, err := reg.RemoveAll(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Removed %s\n", pluralEntries(n))
		return nil
	}

	removed, err := reg.Remove(ctx, p)
	if err != nil {
		return err
	}
	if !removed {
		return errors.Errorf("%s does not exist", p)
	}
	return nil
}

func pluralEntries(n int64) string {
	if n == 1 {
		return "1 entry"
	}
	return humanize.Comma(n) + " entries"
}
