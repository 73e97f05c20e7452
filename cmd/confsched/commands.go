package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/arzzra/soft_conference/internal/config"
	"github.com/arzzra/soft_conference/pkg/address"
	"github.com/arzzra/soft_conference/pkg/conference"
	"github.com/arzzra/soft_conference/pkg/scheduler"
	"github.com/arzzra/soft_conference/pkg/sipfocus"
)

// waiter переводит уведомления планировщика в каналы для CLI
type waiter struct {
	states chan scheduler.State
	sent   chan []scheduler.InvitationResult
}

func newWaiter() *waiter {
	return &waiter{
		states: make(chan scheduler.State, 16),
		sent:   make(chan []scheduler.InvitationResult, 1),
	}
}

func (w *waiter) OnStateChanged(state scheduler.State)                   { w.states <- state }
func (w *waiter) OnInvitationsSent(results []scheduler.InvitationResult) { w.sent <- results }

// settled ждет Ready или Error после запроса к серверу
func (w *waiter) settled(ctx context.Context) (scheduler.State, error) {
	for {
		select {
		case state := <-w.states:
			if state == scheduler.StateReady || state == scheduler.StateError {
				return state, nil
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (w *waiter) results(ctx context.Context) ([]scheduler.InvitationResult, error) {
	select {
	case res := <-w.sent:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *app) schedule(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	file := fs.String("f", "", "YAML файл с описанием конференции")
	noSend := fs.Bool("no-send", false, "не рассылать приглашения")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *file == "" {
		return fmt.Errorf("%w: schedule требует -f", errUsage)
	}

	doc, err := config.LoadConference(*file)
	if err != nil {
		return err
	}
	info, err := doc.Info()
	if err != nil {
		return err
	}
	return a.publish(ctx, info, false, !*noSend)
}

func (a *app) cancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	uri := fs.String("uri", "", "адрес конференции")
	noSend := fs.Bool("no-send", false, "не рассылать отмены")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *uri == "" {
		return fmt.Errorf("%w: cancel требует -uri", errUsage)
	}

	addr, err := address.Parse(*uri)
	if err != nil {
		return err
	}
	info, err := a.store.Find(ctx, a.account.Key(), addr)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("конференция %s не найдена", addr.URIOnly())
	}
	return a.publish(ctx, info, true, !*noSend)
}

// publish отправляет описание на сервер и, если нужно, рассылает приглашения
func (a *app) publish(ctx context.Context, info *conference.Info, cancel, send bool) error {
	s, err := a.newScheduler()
	if err != nil {
		return err
	}
	w := newWaiter()
	s.AddListener(w)
	defer s.Wait()

	ctx, stop := context.WithTimeout(ctx, a.cfg.Scheduler.WaitTimeout)
	defer stop()

	if cancel {
		err = s.CancelConference(ctx, info)
	} else {
		err = s.SetInfo(ctx, info)
	}
	if err != nil {
		return err
	}

	state, err := w.settled(ctx)
	if err != nil {
		return err
	}
	if state == scheduler.StateError {
		return s.LastError()
	}

	current := s.Info()
	fmt.Fprintf(os.Stdout, "%s %s uid=%s sequence=%d\n",
		current.State(), current.URI().URIOnly(), current.IcsUID(), current.IcsSequence())
	if !send {
		return nil
	}

	if err := s.SendInvitations(ctx, scheduler.InvitationParams{}); err != nil {
		if errors.Is(err, scheduler.ErrNoRecipients) {
			a.logger.Info("confsched: no invitation recipients")
			return nil
		}
		return err
	}
	results, err := w.results(ctx)
	if err != nil {
		return err
	}
	printResults(os.Stdout, results)
	if failed := scheduler.FailedRecipients(results); len(failed) > 0 {
		return fmt.Errorf("не доставлено: %d из %d", len(failed), len(results))
	}
	return nil
}

func (a *app) list(ctx context.Context, out io.Writer) error {
	infos, err := a.store.List(ctx, a.account.Key())
	if err != nil {
		return err
	}
	printConferences(out, infos)
	return nil
}

// serve принимает входящие MESSAGE с описаниями до сигнала остановки
func (a *app) serve(ctx context.Context) error {
	client, err := a.sipClient()
	if err != nil {
		return err
	}
	receiver := scheduler.NewReceiver(a.account, a.store,
		scheduler.WithLogger(a.logger),
		scheduler.WithMetrics(a.metrics))
	client.HandleMessages(sipfocus.NewInboundHandler(receiver,
		sipfocus.WithLogger(a.logger),
		sipfocus.WithOnAccepted(func(info *conference.Info) {
			a.logger.Info("confsched: conference info received",
				slog.String("uri", info.URI().URIOnly()),
				slog.String("subject", info.Subject()),
				slog.String("state", info.State().String()),
				slog.Int("sequence", int(info.IcsSequence())))
		})))

	err = client.Listen(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
