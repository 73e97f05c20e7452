package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emiago/sipgo/sip"
)

const usage = `confsched - планирование SIP конференций

Использование:
  confsched [-config файл] [-env файл] [-debug] <команда> [флаги]

Команды:
  schedule -f conference.yaml [-no-send]   создать или изменить конференцию
  cancel -uri sip:conf@host [-no-send]     отменить конференцию
  list                                     сохраненные конференции
  serve                                    принимать входящие приглашения
`

func main() {
	var (
		configPath = flag.String("config", "", "YAML файл настроек")
		envFile    = flag.String("env", ".env", "файл переменных окружения")
		debug      = flag.Bool("debug", false, "журнал SIP сообщений")
	)
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *debug {
		sip.SIPDebug = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *envFile, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "confsched: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, configPath, envFile string, args []string) error {
	command, args := args[0], args[1:]
	switch command {
	case "schedule", "cancel", "list", "serve":
	default:
		return fmt.Errorf("%w: неизвестная команда %q", errUsage, command)
	}

	a, err := newApp(configPath, envFile)
	if err != nil {
		return err
	}
	defer a.close()

	switch command {
	case "schedule":
		return a.schedule(ctx, args)
	case "cancel":
		return a.cancel(ctx, args)
	case "list":
		return a.list(ctx, os.Stdout)
	default:
		return a.serve(ctx)
	}
}
