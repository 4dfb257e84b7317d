package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkbelov/moviestore/internal/logger"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []Message
	failed int
	err    error
}

func (s *fakeSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		s.failed++
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestNotifier_Delivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{}
	n := New(sender, logger.NewNoOpLogger(), Opts{CountWorkers: 2})
	stopped := n.Run(ctx)

	n.SendActivationEmail("user@example.com", "http://127.0.0.1/accounts/activate/?token=abc")
	n.SendPasswordChanged("user@example.com")

	waitFor(t, func() bool { return len(sender.messages()) == 2 })

	subjects := map[string]bool{}
	for _, m := range sender.messages() {
		subjects[m.Subject] = true
		require.Equal(t, []string{"user@example.com"}, m.To)
	}
	require.True(t, subjects["Activate your account"])
	require.True(t, subjects["Your password was changed"])

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop")
	}
}

func TestNotifier_ActivationBodyContainsLink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{}
	n := New(sender, logger.NewNoOpLogger(), Opts{})
	n.Run(ctx)

	link := "http://127.0.0.1/accounts/activate/?token=deadbeef"
	n.SendActivationEmail("user@example.com", link)

	waitFor(t, func() bool { return len(sender.messages()) == 1 })
	require.Contains(t, sender.messages()[0].Body, link)
}

func TestNotifier_SendFailureIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{err: errors.New("smtp down")}
	n := New(sender, logger.NewNoOpLogger(), Opts{CountWorkers: 1})
	n.Run(ctx)

	n.SendPasswordChanged("user@example.com")

	// The failed message must not come back once the sender recovers
	waitFor(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return sender.failed == 1
	})
	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()

	n.SendPasswordChanged("other@example.com")
	waitFor(t, func() bool { return len(sender.messages()) == 1 })
	require.Equal(t, []string{"other@example.com"}, sender.messages()[0].To)
}

func TestNotifier_NoRecipientsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{}
	n := New(sender, logger.NewNoOpLogger(), Opts{})
	n.Run(ctx)

	n.SendMovieRemovedFromCarts(nil, "Heat")
	n.SendMovieRemovedFromCarts([]string{"mod@example.com"}, "Heat")

	waitFor(t, func() bool { return len(sender.messages()) == 1 })
	require.Equal(t, []string{"mod@example.com"}, sender.messages()[0].To)
}
