// Command nmail is a line-oriented mail reader driven by the nmail command
// language.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/nhle/nmail/internal/credential"
	"github.com/nhle/nmail/internal/history"
	"github.com/nhle/nmail/internal/input"
	"github.com/nhle/nmail/internal/interp"
	"github.com/nhle/nmail/internal/logging"
	"github.com/nhle/nmail/internal/mailbox"
	"github.com/nhle/nmail/internal/model"
	"github.com/nhle/nmail/internal/vars"
)

const appName = "nmail"

type options struct {
	configPath  string
	writeConfig bool
	assignments []string
	commands    []string
	noSystemRC  bool
	debug       bool
	verbose     bool
	batch       bool
	folder      string
	account     string
	readOnly    bool
	setPassword string
	forget      string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var o options
	flags := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	flags.StringVar(&o.configPath, "config", model.DefaultConfigPath(), "configuration file")
	flags.BoolVar(&o.writeConfig, "write-config", false, "write the effective configuration and exit")
	flags.StringArrayVarP(&o.assignments, "set", "S", nil, "assign a variable (name or name=value) after the resource files")
	flags.StringArrayVarP(&o.commands, "execute", "X", nil, "run a command after start-up")
	flags.BoolVarP(&o.noSystemRC, "no-system-rc", "n", false, "do not read "+model.SystemRCFile)
	flags.BoolVarP(&o.debug, "debug", "d", false, "set the debug variable")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "set the verbose variable")
	flags.BoolVarP(&o.batch, "batch", "#", false, "batch mode: read commands from standard input without a terminal")
	file := flags.BoolP("file", "f", false, "open the folder named by the first argument (default &) instead of the system mailbox")
	flags.StringVarP(&o.account, "account", "A", "", "switch to this account after start-up")
	flags.BoolVarP(&o.readOnly, "read-only", "R", false, "open folders read-only")
	flags.StringVar(&o.setPassword, "set-password", "", "store the password for an imap(s):// URL in the keyring")
	flags.StringVar(&o.forget, "forget-password", "", "remove the stored password for an imap(s):// URL")
	model.RegisterFlags(flags)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	if *file {
		o.folder = "&"
		if flags.NArg() > 0 {
			o.folder = flags.Arg(0)
		}
	}

	cfg, err := model.LoadConfig(o.configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	if o.writeConfig {
		if err := model.SaveConfig(o.configPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		return 0
	}

	logging.Setup(cfg.Logging.Verbosity, cfg.Logging.File)
	log := logging.Get("main")

	creds, err := credential.Open()
	if err != nil {
		log.Infof("no keyring: %s", err)
	}
	if o.setPassword != "" || o.forget != "" {
		return managePassword(creds, o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hist *history.SQLiteStore
	if cfg.History.Enabled {
		hist, err = history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			log.Warningf("history disabled: %s", err)
		} else {
			defer hist.Close()
			if err := hist.Trim(ctx, cfg.History.Size); err != nil {
				log.Warningf("trimming history: %s", err)
			}
		}
	}

	interactive := !o.batch && term.IsTerminal(int(os.Stdin.Fd()))

	var ip *interp.Interpreter
	opener := &mailbox.Opener{
		ReadOnly: o.readOnly,
		Password: func(scheme, user, host string) (string, error) {
			for _, name := range []string{"password-" + user + "@" + host, "password"} {
				if v, ok := ip.Vars.Get(name); ok && v != "" {
					return v, nil
				}
			}
			if creds == nil {
				return "", fmt.Errorf("no password for %s@%s", user, host)
			}
			return creds.Get(credential.AccountKey(scheme, user, host))
		},
	}
	iopts := interp.Options{
		Env:         vars.ProcessEnv{},
		Interactive: interactive,
		Opener:      opener,
	}
	if hist != nil {
		iopts.History = hist
	}
	ip = interp.New(iopts)

	if status, done := startup(ctx, ip, cfg, o); done {
		return status
	}

	var t *input.Terminal
	if interactive {
		t = input.NewTerminal()
		defer t.Close()
		if hist != nil {
			loadHistory(ctx, t, hist, cfg.History.Size)
		}
		if err := ip.PushTerminal(t); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT)
		defer signal.Stop(sig)
		go func() {
			for range sig {
				ip.Interrupt()
			}
		}()
	} else if err := ip.PushReader("stdin", os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}

	err = ip.Run(ctx)
	var exit *interp.ExitError
	switch {
	case errors.As(err, &exit):
		return exit.Status
	case err != nil:
		log.Debugf("run: %s", err)
	}
	if err := ip.Quit(ctx); err != nil {
		return 1
	}
	status, _ := ip.Status()
	if interactive {
		return 0
	}
	return status
}

// startup runs everything that precedes reading commands. It reports
// done when the session already ended, e.g. through exit in a resource
// file.
func startup(ctx context.Context, ip *interp.Interpreter, cfg *model.AppConfig, o options) (int, bool) {
	log := logging.Get("main")
	settle := func(err error) (int, bool) {
		var exit *interp.ExitError
		if errors.As(ip.Settle(err), &exit) {
			return exit.Status, true
		}
		return 0, false
	}

	for name, expansion := range cfg.Ghosts {
		ip.SetGhost(name, expansion)
	}

	for _, rc := range cfg.RCFiles {
		if o.noSystemRC && rc == model.SystemRCFile {
			continue
		}
		if _, err := os.Stat(rc); errors.Is(err, fs.ErrNotExist) {
			log.Debugf("skipping missing resource file %s", rc)
			continue
		}
		if status, done := settle(ip.Source(ctx, rc)); done {
			return status, true
		}
	}

	assign := func(spec string) {
		name, value, _ := strings.Cut(spec, "=")
		if err := ip.Vars.SetFromCommandLine(name, value); err != nil {
			fmt.Fprintf(os.Stderr, "%s: -S %s: %v\n", appName, spec, err)
		}
	}
	for name, value := range cfg.Variables {
		assign(name + "=" + value)
	}
	for _, spec := range o.assignments {
		assign(spec)
	}
	if o.debug {
		assign("debug")
	}
	if o.verbose {
		assign("verbose")
	}
	ip.Vars.MarkStarted()

	if o.account != "" {
		if status, done := settle(ip.SwitchAccount(ctx, o.account)); done {
			return status, true
		}
	}

	folder := o.folder
	if folder == "" && ip.Folder() == nil && hasInbox(ip) {
		folder = "%"
	}
	if folder != "" {
		if status, done := settle(ip.OpenFolder(ctx, folder)); done {
			return status, true
		}
	}

	for _, line := range o.commands {
		if status, done := settle(ip.Execute(ctx, line)); done {
			return status, true
		}
	}
	return 0, false
}

func hasInbox(ip *interp.Interpreter) bool {
	for _, name := range []string{"inbox", "MAIL"} {
		if v, ok := ip.Vars.Get(name); ok && v != "" {
			return true
		}
	}
	return false
}

func loadHistory(ctx context.Context, t *input.Terminal, hist *history.SQLiteStore, size int) {
	entries, err := hist.Recent(ctx, size)
	if err != nil {
		logging.Get("main").Warningf("loading history: %s", err)
		return
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Line)
	}
	if err := t.LoadHistory(lines); err != nil {
		logging.Get("main").Warningf("loading history: %s", err)
	}
}

// managePassword stores or removes the keyring entry of an IMAP URL.
func managePassword(creds *credential.Store, o options) int {
	if creds == nil {
		fmt.Fprintf(os.Stderr, "%s: no keyring available\n", appName)
		return 1
	}
	raw := o.setPassword
	if raw == "" {
		raw = o.forget
	}
	u, err := url.Parse(raw)
	if err != nil || !mailbox.IsRemote(raw) || u.User == nil {
		fmt.Fprintf(os.Stderr, "%s: %s: want imap[s]://user@host\n", appName, raw)
		return 1
	}
	key := credential.AccountKey(u.Scheme, u.User.Username(), u.Hostname())

	if o.forget != "" {
		if err := creds.Delete(key); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		return 0
	}

	var pass string
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Password for %s: ", key)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		pass = string(b)
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintf(os.Stderr, "%s: reading password: %v\n", appName, err)
			return 1
		}
		pass = strings.TrimRight(line, "\r\n")
	}
	if err := creds.Set(key, pass); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}
