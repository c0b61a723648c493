package shell

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/brettbedarf/treefs"
)

func (s *Session) create(out io.Writer, verb, rest string, kind treefs.Kind) error {
	name, err := argName(verb, rest)
	if err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	id, err := s.cursor.Create(name, kind)
	if err != nil {
		return err
	}
	what := "file"
	if kind == treefs.KindDir {
		what = "directory"
	}
	fmt.Fprintf(out, "Create %s %s successful! (id %d)\n", what, name, id)
	return nil
}

func (s *Session) list(out io.Writer) error {
	self, err := s.cursor.Stat()
	if err != nil {
		return err
	}
	entries, err := s.cursor.List()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "The elements in %s.\n", self.Name)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE")
	for _, e := range entries {
		size := humanize.Bytes(uint64(e.Size))
		if e.Kind.IsDir() {
			size = humanize.Comma(int64(e.Children)) + " items"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Name, e.Kind, size)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d entries\n", len(entries), treefs.MaxChildren)
	return nil
}

func (s *Session) changeDir(out io.Writer, rest string) error {
	target, err := argName("cd", rest)
	if err != nil {
		return err
	}
	switch target {
	case "/":
		s.cursor.Reset()
	case "..":
		err = s.cursor.Ascend()
	case ".":
		_, err = s.cursor.Stat()
	default:
		err = s.cursor.EnterChild(target)
	}
	return err
}

func (s *Session) remove(out io.Writer, rest string) error {
	name, err := argName("rm", rest)
	if err != nil {
		return err
	}
	if err := s.cursor.Delete(name); err != nil {
		return err
	}
	fmt.Fprintln(out, "Delete successfully!")
	return nil
}

func (s *Session) cat(out io.Writer, rest string) error {
	name, err := argName("cat", rest)
	if err != nil {
		return err
	}
	content, err := s.cursor.ReadContent(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", content)
	return nil
}

// write replaces the content with everything after the name, spaces included
func (s *Session) write(out io.Writer, rest string) error {
	name, text := splitWord(rest)
	if name == "" {
		return fmt.Errorf("%w: you should add the name, like \"write XXX text\"", ErrUsage)
	}
	if err := s.cursor.WriteContent(name, []byte(text)); err != nil {
		return err
	}
	stored := min(len(text), treefs.MaxContent)
	fmt.Fprintf(out, "Wrote %s to %s\n", humanize.Bytes(uint64(stored)), name)
	if stored < len(text) {
		fmt.Fprintf(out, "Only the first %d bytes were kept.\n", treefs.MaxContent)
	}
	return nil
}

func (s *Session) find(out io.Writer, rest string) error {
	name, err := argName("find", rest)
	if err != nil {
		return err
	}
	id, err := s.cursor.Search(name)
	if err != nil {
		return err
	}
	e, err := s.cursor.FS().Stat(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "name: %s id: %d type: %s\n", e.Name, e.ID, e.Kind)
	return nil
}

func (s *Session) pwd(out io.Writer) error {
	p, err := s.cursor.Path()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "/%s\n", p)
	return nil
}

func (s *Session) save(ctx context.Context, out io.Writer) error {
	n, err := s.cursor.FS().Persist(ctx, s.dev)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Save to disk successfully! (%s)\n", humanize.Bytes(uint64(n)))
	return nil
}

// load replaces the whole store so the cursor goes back to the root
func (s *Session) load(ctx context.Context, out io.Writer) error {
	if err := s.cursor.FS().Restore(ctx, s.dev); err != nil {
		return err
	}
	s.cursor.Reset()
	fmt.Fprintf(out, "Load from disk successfully! (%d nodes)\n", s.cursor.FS().Len())
	return nil
}
