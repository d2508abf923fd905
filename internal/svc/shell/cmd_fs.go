package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"rosh/internal/kernel"
	"rosh/internal/vfs"
)

var errMissingOperand = errors.New("missing operand")

func runLs(ctx context.Context, k *kernel.Kernel, e *env, args []string) string {
	fs := newFlags("ls")
	all := fs.BoolP("all", "a", false, "include hidden entries")
	long := fs.BoolP("long", "l", false, "show kind, size and age")
	if out, ok := parse(fs, args); !ok {
		return out
	}
	if fs.NArg() > 1 {
		return usage(fs, errors.New("too many arguments"))
	}

	dir := e.cwd.Get()
	if fs.NArg() == 1 {
		dir = vfs.Resolve(dir, fs.Arg(0))
	}
	target, err := k.FS().Stat(ctx, dir)
	if err != nil {
		return fmt.Sprintf("ls: cannot access '%s': %s", dir, vfs.Describe(err))
	}

	entries := []vfs.Entry{target}
	if target.IsFolder() {
		// the trailing separator keeps siblings such as /docs2 out of /docs
		prefix := dir
		if dir != "/" {
			prefix += "/"
		}
		entries, err = k.FS().ReadFolder(ctx, prefix)
		if err != nil {
			return fmt.Sprintf("ls: cannot read '%s': %s", dir, vfs.Describe(err))
		}
	}

	now := k.Time()
	var b strings.Builder
	for _, en := range entries {
		if en.Metadata.IsHidden && !*all {
			continue
		}
		if *long {
			fmt.Fprintf(&b, "%-6s %8s  %-16s %s\n",
				en.Kind, size(en), humanize.RelTime(en.Modified(), now, "ago", "from now"), en.Display())
			continue
		}
		b.WriteString(en.Display())
		b.WriteByte('\n')
	}
	return b.String()
}

func size(en vfs.Entry) string {
	if en.Kind != vfs.KindFile {
		return "-"
	}
	return humanize.Bytes(uint64(len(en.Contents)))
}

func runCd(ctx context.Context, k *kernel.Kernel, e *env, args []string) string {
	fs := newFlags("cd")
	if out, ok := parse(fs, args); !ok {
		return out
	}
	if fs.NArg() != 1 {
		return usage(fs, errMissingOperand)
	}

	target := vfs.Resolve(e.cwd.Get(), fs.Arg(0))
	en, err := k.FS().Stat(ctx, target)
	if err != nil {
		return fmt.Sprintf("cd: '%s': %s", target, vfs.Describe(err))
	}
	if !en.IsFolder() {
		return fmt.Sprintf("cd: '%s': %s", target, vfs.ErrNotFolder)
	}
	e.cwd.Set(target)
	return fmt.Sprintf("Changed directory to '%s'", target)
}

func runMkdir(ctx context.Context, k *kernel.Kernel, e *env, args []string) string {
	fs := newFlags("mkdir")
	verbose := fs.BoolP("verbose", "v", false, "print a message for each created folder")
	if out, ok := parse(fs, args); !ok {
		return out
	}
	if fs.NArg() == 0 {
		return usage(fs, errMissingOperand)
	}

	var b strings.Builder
	created := 0
	for _, folder := range fs.Args() {
		en, err := k.FS().CreateFolderRelative(ctx, e.cwd.Get(), folder)
		if err != nil {
			fmt.Fprintf(&b, "mkdir: cannot create directory '%s': %s\n", folder, vfs.Describe(err))
			continue
		}
		created++
		if *verbose {
			fmt.Fprintf(&b, "mkdir: created directory '%s'\n", en.Path)
		} else {
			fmt.Fprintf(&b, "%s\n", en.Path)
		}
	}
	if *verbose && created > 0 {
		fmt.Fprintf(&b, "Created %d %s\n", created, plural(created, "directory", "directories"))
	}
	return b.String()
}

func runExists(ctx context.Context, k *kernel.Kernel, e *env, args []string) string {
	fs := newFlags("exists")
	if out, ok := parse(fs, args); !ok {
		return out
	}
	if fs.NArg() != 1 {
		return usage(fs, errMissingOperand)
	}

	// joined without cleaning so "a//b" is rejected like "/a//b"
	p := vfs.Join(e.cwd.Get(), fs.Arg(0))
	ok, err := k.FS().Exists(ctx, p)
	switch {
	case err != nil:
		return fmt.Sprintf("exists: cannot check '%s': %s", p, vfs.Describe(err))
	case ok:
		return fmt.Sprintf("Entry '%s' exists.", p)
	default:
		return fmt.Sprintf("Entry '%s' does not exist.", p)
	}
}

func runTouch(ctx context.Context, k *kernel.Kernel, e *env, args []string) string {
	fs := newFlags("touch")
	if out, ok := parse(fs, args); !ok {
		return out
	}
	if fs.NArg() == 0 {
		return usage(fs, errMissingOperand)
	}

	var b strings.Builder
	for _, name := range fs.Args() {
		p := vfs.Resolve(e.cwd.Get(), name)
		if _, err := k.FS().Touch(ctx, p); err != nil {
			fmt.Fprintf(&b, "touch: cannot touch '%s': %s\n", name, vfs.Describe(err))
		}
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
