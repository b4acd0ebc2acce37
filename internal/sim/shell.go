package sim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/sweeney/shuttle-console/internal/gpio"
	"github.com/sweeney/shuttle-console/internal/pins"
)

const help = `commands:
  press <addr>...          pull digital inputs low
  release <addr>...        let digital inputs float high
  set <addr> <0|1>         set a digital input level
  analog <addr> <value>    set an analog input (0-65535)
  encoder <first> <pos>    turn the encoder on lines first..first+3 to pos
  mode <addr> <in|up|out>  configure a digital line
  write <addr> <0|1>       drive a digital output
  read <addr>              read a digital line directly
  sample                   run one sampling pass now
  dump                     show board levels
  state                    show the sample cache
  help                     show this text
`

// ErrQuit is returned by Exec for "quit" and "exit".
var ErrQuit = errors.New("quit")

// Shell drives a simulated board from text commands.
type Shell struct {
	board *Board
	pins  *pins.Manager
	out   io.Writer
}

// NewShell returns a shell writing replies to out.
func NewShell(board *Board, m *pins.Manager, out io.Writer) *Shell {
	return &Shell{board: board, pins: m, out: out}
}

// Run executes lines from r until EOF, "quit" or ctx is done. Command errors
// are reported on the output and do not stop the shell.
func (s *Shell) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		err := s.Exec(sc.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	return sc.Err()
}

// Exec runs one command line. Blank lines and # comments are ignored.
func (s *Shell) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "press", "release":
		if len(args) == 0 {
			return fmt.Errorf("%s: need at least one address", cmd)
		}
		for _, a := range args {
			addr, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("%s: bad address %q", cmd, a)
			}
			if err := s.board.Set(addr, cmd == "release"); err != nil {
				return err
			}
		}
		return nil

	case "set", "write":
		addr, level, err := addrLevel(cmd, args)
		if err != nil {
			return err
		}
		if cmd == "set" {
			return s.board.Set(addr, level)
		}
		return s.pins.DigitalWrite(addr, level)

	case "analog":
		if len(args) != 2 {
			return errors.New("usage: analog <addr> <value>")
		}
		addr, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("analog: bad address %q", args[0])
		}
		v, err := strconv.ParseUint(args[1], 0, 16)
		if err != nil {
			return fmt.Errorf("analog: bad value %q", args[1])
		}
		return s.board.SetAnalog(addr, uint16(v))

	case "encoder":
		if len(args) != 2 {
			return errors.New("usage: encoder <first> <pos>")
		}
		first, err1 := strconv.Atoi(args[0])
		pos, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			return errors.New("usage: encoder <first> <pos>")
		}
		return s.board.SetEncoder(first, pos)

	case "mode":
		if len(args) != 2 {
			return errors.New("usage: mode <addr> <in|up|out>")
		}
		addr, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("mode: bad address %q", args[0])
		}
		mode, ok := gpio.ParseMode(args[1])
		if !ok {
			return fmt.Errorf("mode: unknown mode %q", args[1])
		}
		return s.pins.SetPinMode(addr, mode)

	case "read":
		if len(args) != 1 {
			return errors.New("usage: read <addr>")
		}
		addr, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("read: bad address %q", args[0])
		}
		v, err := s.pins.DigitalRead(addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%d=%d\n", addr, bit(v))
		return nil

	case "sample":
		s.pins.Sample()
		return nil

	case "dump":
		io.WriteString(s.out, s.board.Dump())
		return nil

	case "state":
		io.WriteString(s.out, s.pins.Snapshot().String())
		return nil

	case "help", "?":
		io.WriteString(s.out, help)
		return nil

	case "quit", "exit":
		return ErrQuit
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

func addrLevel(cmd string, args []string) (int, bool, error) {
	if len(args) != 2 {
		return 0, false, fmt.Errorf("usage: %s <addr> <0|1>", cmd)
	}
	addr, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, false, fmt.Errorf("%s: bad address %q", cmd, args[0])
	}
	switch args[1] {
	case "0", "low":
		return addr, false, nil
	case "1", "high":
		return addr, true, nil
	}
	return 0, false, fmt.Errorf("%s: bad level %q", cmd, args[1])
}

func bit(v bool) int {
	if v {
		return 1
	}
	return 0
}
