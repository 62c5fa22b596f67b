package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"auto_course_generator/logger"
)

var ErrEmptyReply = errors.New("model returned an empty reply")

// TransportError means the exchange with the model did not complete. No turns were appended.
type TransportError struct {
	Stage       Stage
	RateLimited bool
	Err         error
}

func (e *TransportError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("stage %s: rate limited: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s: model call failed: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Driver sends one composed prompt per stage and threads the conversation log forward.
type Driver struct {
	llm LLMClient
	log *logger.Logger
	now func() time.Time
}

func NewDriver(llm LLMClient, log *logger.Logger) (*Driver, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Driver{llm: llm, log: log, now: time.Now}, nil
}

// DriveStage performs a single exchange. On success the returned history is a new slice
// holding history plus one user and one model turn; history itself is never modified.
func (d *Driver) DriveStage(ctx context.Context, stage Stage, in Input, history []Turn) (string, []Turn, error) {
	user, reply, err := d.exchange(ctx, stage, in, toMessages(history))
	if err != nil {
		return "", history, err
	}
	next := make([]Turn, len(history), len(history)+2)
	copy(next, history)
	next = append(next, d.turnPair(stage, user, reply)...)
	return reply, next, nil
}

// Task is one independent exchange of a batch.
type Task struct {
	Stage Stage
	Input Input
}

// DriveBatch runs independent exchanges with at most limit in flight. Every task sees the
// same history snapshot; completed exchanges are appended under one lock, so each user turn
// is immediately followed by its reply and pairs land in completion order. Replies are
// returned in task order. On failure the remaining tasks are cancelled and the returned
// history holds only the exchanges that completed.
func (d *Driver) DriveBatch(ctx context.Context, tasks []Task, history []Turn, limit int) ([]string, []Turn, error) {
	if limit <= 0 {
		limit = 1
	}
	snapshot := toMessages(history)
	replies := make([]string, len(tasks))

	var mu sync.Mutex
	next := make([]Turn, len(history), len(history)+2*len(tasks))
	copy(next, history)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			user, reply, err := d.exchange(gctx, task.Stage, task.Input, snapshot)
			if err != nil {
				return err
			}
			replies[i] = reply
			mu.Lock()
			next = append(next, d.turnPair(task.Stage, user, reply)...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, next, err
	}
	return replies, next, nil
}

func (d *Driver) exchange(ctx context.Context, stage Stage, in Input, history []Message) (string, string, error) {
	user, err := Compose(stage, in)
	if err != nil {
		return "", "", err
	}
	start := d.now()
	reply, err := d.llm.Complete(ctx, Prompt{
		Stage:   stage,
		System:  SystemPrompt(stage),
		User:    user,
		History: history,
	})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", "", err
		}
		d.log.Warn("model exchange failed", "stage", stage, "error", err)
		return "", "", &TransportError{Stage: stage, RateLimited: isRateLimited(err), Err: err}
	}
	d.log.Debug("model exchange", "stage", stage, "prompt_chars", len(user), "reply_chars", len(reply), "elapsed", d.now().Sub(start))
	return user, reply, nil
}

func (d *Driver) turnPair(stage Stage, user, reply string) []Turn {
	now := d.now()
	return []Turn{
		{Role: RoleUser, Content: user, Stage: stage, CreatedAt: now},
		{Role: RoleModel, Content: reply, Stage: stage, CreatedAt: now},
	}
}

func toMessages(history []Turn) []Message {
	if len(history) == 0 {
		return nil
	}
	msgs := make([]Message, 0, len(history))
	for _, t := range history {
		role := "user"
		if t.Role == RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, Message{Role: role, Content: t.Content})
	}
	return msgs
}
