// Package inmem provides a session repository that holds the session data in-memory
package inmem

import (
	"time"

	"github.com/google/uuid"

	"github.com/eventworks/backstage/internal/models"
	"github.com/eventworks/backstage/internal/repos"
)

// How long does a session last after the last update?
const defaultExpiry = time.Hour

type opKind int

const (
	opCreate opKind = iota
	opGet
	opDelete
)

// sessionOp is a request sent to the control goroutine. All session state is owned by that
// goroutine - the repo methods only exchange messages with it
type sessionOp struct {
	kind      opKind
	sessionID string
	userID    uint
	extend    bool
	answer    chan<- sessionAnswer
}

type sessionAnswer struct {
	session *models.Session
	err     error
}

// SessionRepo is a session repository that stores the session data in-memory
type SessionRepo struct {
	ops    chan<- sessionOp
	expiry time.Duration
}

// New creates a new session repository instance
func New() *SessionRepo {
	return NewWithExpiry(defaultExpiry)
}

// NewWithExpiry creates a new session repository with a custom session lifetime
func NewWithExpiry(expiry time.Duration) *SessionRepo {
	ops := make(chan sessionOp)
	repo := &SessionRepo{
		ops:    ops,
		expiry: expiry,
	}
	go repo.control(ops)
	return repo
}

// control owns the session map. It serves requests until the process ends and purges expired
// sessions about once a minute
func (r *SessionRepo) control(ops <-chan sessionOp) {
	sessions := map[string]*models.Session{}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case op := <-ops:
			switch op.kind {
			case opCreate:
				sess := models.Session{
					ID:        uuid.NewString(),
					UserID:    op.userID,
					ExpiresAt: time.Now().Add(r.expiry),
				}
				sessions[sess.ID] = &sess
				copy := sess
				op.answer <- sessionAnswer{session: &copy}
			case opGet:
				sess, ok := sessions[op.sessionID]
				if !ok {
					op.answer <- sessionAnswer{err: repos.ErrEntityNotExisting}
					break
				}
				if sess.Expired() {
					delete(sessions, op.sessionID)
					op.answer <- sessionAnswer{err: repos.ErrEntityNotExisting}
					break
				}
				if op.extend {
					sess.ExpiresAt = time.Now().Add(r.expiry)
				}
				copy := *sess
				op.answer <- sessionAnswer{session: &copy}
			case opDelete:
				delete(sessions, op.sessionID)
				op.answer <- sessionAnswer{}
			}
		case <-ticker.C:
			for key, sess := range sessions {
				if sess.Expired() {
					delete(sessions, key)
				}
			}
		}
	}
}

func (r *SessionRepo) send(op sessionOp) sessionAnswer {
	answer := make(chan sessionAnswer)
	op.answer = answer
	r.ops <- op
	return <-answer
}

// CreateFor creates a new session for the given user ID
func (r *SessionRepo) CreateFor(userID uint) (*models.Session, error) {
	resp := r.send(sessionOp{kind: opCreate, userID: userID})
	if resp.err != nil {
		return nil, resp.err
	}
	return resp.session, nil
}

// GetByID returns the session associated with the given session ID and extends it's expiry if requested
func (r *SessionRepo) GetByID(sessionID string, extend bool) (*models.Session, error) {
	resp := r.send(sessionOp{kind: opGet, sessionID: sessionID, extend: extend})
	if resp.err != nil {
		return nil, resp.err
	}
	return resp.session, nil
}

// Delete removes a session from the session storage
func (r *SessionRepo) Delete(sessionID string) error {
	resp := r.send(sessionOp{kind: opDelete, sessionID: sessionID})
	return resp.err
}
