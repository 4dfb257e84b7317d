package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/nkbelov/moviestore/internal/logger"
)

const (
	defaultCountWorkers = 4   // Number of workers to deliver messages
	defaultQueueSize    = 256 // Buffered queue between handlers and workers
)

// Message is a single outgoing email
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers one message. SMTPSender is the production implementation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Opts struct {
	// If not set then defaults are used
	CountWorkers int
	QueueSize    int
}

// Notifier queues messages and delivers them with a pool of workers.
// Delivery is at most once: a failed send is logged and dropped, messages
// still queued at shutdown are lost.
type Notifier struct {
	queue  chan Message
	sender Sender
	logger logger.Logger

	countWorkers int
}

func New(sender Sender, logger logger.Logger, opts Opts) *Notifier {
	if opts.CountWorkers <= 0 {
		opts.CountWorkers = defaultCountWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	return &Notifier{
		queue:        make(chan Message, opts.QueueSize),
		sender:       sender,
		logger:       logger,
		countWorkers: opts.CountWorkers,
	}
}

// Run starts the delivery workers. The returned channel is closed when all
// workers have stopped after ctx is done.
func (n *Notifier) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < n.countWorkers; i++ {
		wg.Add(1)
		go func() {
			n.worker(ctx)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		n.logger.Debug("Notifier stopped")
	}()

	return idleStopped
}

func (n *Notifier) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-n.queue:
			if err := n.sender.Send(ctx, msg); err != nil {
				n.logger.Error("Failed to send email", "error", err, "subject", msg.Subject)
			}
		}
	}
}

// enqueue never blocks the caller: when the queue is full the message is
// dropped and logged
func (n *Notifier) enqueue(msg Message) {
	select {
	case n.queue <- msg:
	default:
		n.logger.Warn("Notification queue full, message dropped", "subject", msg.Subject)
	}
}

func (n *Notifier) SendActivationEmail(email string, link string) {
	n.enqueue(Message{
		To:      []string{email},
		Subject: "Activate your account",
		Body:    fmt.Sprintf("Welcome to the movie store!\n\nFollow the link to activate your account:\n%s\n\nThe link expires in 24 hours.", link),
	})
}

func (n *Notifier) SendPasswordResetEmail(email string, link string) {
	n.enqueue(Message{
		To:      []string{email},
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Someone requested a password reset for your account.\n\nFollow the link to set a new password:\n%s\n\nIf that was not you, ignore this message.", link),
	})
}

func (n *Notifier) SendPasswordChanged(email string) {
	n.enqueue(Message{
		To:      []string{email},
		Subject: "Your password was changed",
		Body:    "The password of your account was just changed.\n\nIf that was not you, reset your password immediately.",
	})
}

func (n *Notifier) SendCommentAnswer(email string, movieName string, answer string) {
	n.enqueue(Message{
		To:      []string{email},
		Subject: fmt.Sprintf("New answer to your comment on %q", movieName),
		Body:    fmt.Sprintf("Your comment on %q got an answer:\n\n%s", movieName, answer),
	})
}

func (n *Notifier) SendMovieRemovedFromCarts(emails []string, movieName string) {
	if len(emails) == 0 {
		return
	}
	n.enqueue(Message{
		To:      emails,
		Subject: fmt.Sprintf("Movie %q removed from carts", movieName),
		Body:    fmt.Sprintf("The movie %q was deleted from the catalog and removed from every cart that contained it.", movieName),
	})
}
