// Package shell is the line oriented command front-end of a treefs store.
// It tokenizes input lines into verbs, validates names and prints every
// result; the store itself never writes to the terminal.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/util"
)

// ErrQuit is returned by [Session.Exec] for the quit verb
var ErrQuit = errors.New("quit")

// ErrUsage is returned when a verb is missing its argument or is unknown
var ErrUsage = errors.New("usage")

const clearScreen = "\033[H\033[2J"

// Session is one interactive user of a store. Each session has its own
// current directory; the store may be shared with other sessions or a mount.
//
// NOTE: Session is not thread-safe
type Session struct {
	id     uuid.UUID
	cursor *filesystem.Cursor
	dev    treefs.Device
	logger util.Logger
}

// NewSession returns a session positioned at the root of fs that saves to
// and loads from dev
func NewSession(fs *filesystem.FileSystem, dev treefs.Device) *Session {
	id := uuid.New()
	return &Session{
		id:     id,
		cursor: filesystem.NewCursor(fs),
		dev:    dev,
		logger: util.GetLogger("Shell").With().Str("session", id.String()).Logger(),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Cursor returns the session's current directory tracker
func (s *Session) Cursor() *filesystem.Cursor {
	return s.cursor
}

// Prompt returns "/<current directory name>:"
func (s *Session) Prompt() string {
	e, err := s.cursor.Stat()
	if err != nil {
		return "/?:"
	}
	return "/" + e.Name + ":"
}

// Run reads commands from in until quit, end of input or ctx is done.
// Command failures are printed and do not end the loop.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info().Msg("Session started")
	defer s.logger.Info().Msg("Session ended")

	printHelp(out)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, s.Prompt())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.Exec(ctx, scanner.Text(), out)
		switch {
		case errors.Is(err, ErrQuit):
			return nil
		case err != nil:
			fmt.Fprintln(out, describe(err))
		}
	}
}

// Exec runs a single command line and writes its output to out
func (s *Session) Exec(ctx context.Context, line string, out io.Writer) error {
	verb, rest := splitWord(line)
	if verb == "" {
		return nil
	}
	s.logger.Debug().Str("verb", verb).Str("args", rest).Msg("Exec")

	switch verb {
	case "mkf", "touch":
		return s.create(out, verb, rest, treefs.KindFile)
	case "mkdir":
		return s.create(out, verb, rest, treefs.KindDir)
	case "ls":
		return s.list(out)
	case "cd":
		return s.changeDir(out, rest)
	case "rm":
		return s.remove(out, rest)
	case "cat":
		return s.cat(out, rest)
	case "write":
		return s.write(out, rest)
	case "find":
		return s.find(out, rest)
	case "pwd":
		return s.pwd(out)
	case "sv", "save":
		return s.save(ctx, out)
	case "ld", "load":
		return s.load(ctx, out)
	case "help":
		printHelp(out)
		return nil
	case "clear":
		fmt.Fprint(out, clearScreen)
		return nil
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("%w: no such command %q, input [help] to know more", ErrUsage, verb)
	}
}

// splitWord returns the first space separated word and the trimmed rest
func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	word, rest, _ := strings.Cut(s, " ")
	return word, strings.TrimSpace(rest)
}

// argName returns the single name argument of verb
func argName(verb, rest string) (string, error) {
	name, extra := splitWord(rest)
	if name == "" {
		return "", fmt.Errorf("%w: you should add the name, like \"%s XXX\"", ErrUsage, verb)
	}
	if extra != "" {
		return "", fmt.Errorf("%w: %s takes a single name", ErrUsage, verb)
	}
	return name, nil
}

// checkName rejects names the shell could not address later
func checkName(name string) error {
	return filesystem.ValidatePathName(name)
}

// describe turns an error into the line shown to the user
func describe(err error) string {
	switch {
	case errors.Is(err, ErrUsage):
		return strings.TrimPrefix(err.Error(), ErrUsage.Error()+": ")
	case errors.Is(err, treefs.ErrDirectoryFull):
		return "Sorry you cannot add more files in this directory."
	case errors.Is(err, treefs.ErrStoreFull):
		return "Sorry the file system is full."
	case errors.Is(err, treefs.ErrNameCollision):
		return "You have an element of the same name!"
	case errors.Is(err, treefs.ErrProtectedNode):
		return "The root directory cannot be deleted."
	default:
		return "Error: " + err.Error()
	}
}
