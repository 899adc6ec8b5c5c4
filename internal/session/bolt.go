package session

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// BoltStore keeps credentials in a BoltDB file on the server. The browser only holds an opaque
// session id cookie that indexes the credential, so the token never reaches client-side storage.
type BoltStore struct {
	db     *bolt.DB
	name   string
	secure bool
}

// NewBoltStore opens (or creates) the database at path with 0600 permissions and prepares the
// sessions bucket. The session id is carried by the named cookie.
func NewBoltStore(path, cookieName string, secure bool) (BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltStore{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltStore{}, fmt.Errorf("failed to create sessions bucket: %w", err)
	}

	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return BoltStore{db: db, name: cookieName, secure: secure}, nil
}

// Close releases the underlying database.
func (b BoltStore) Close() error {
	return b.db.Close()
}

func (b BoltStore) sessionID(r *http.Request) (string, bool) {
	ck, err := r.Cookie(b.name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// Get returns the credential of the session referenced by the request cookie. A cookie pointing at an
// unknown session counts as no credential.
func (b BoltStore) Get(r *http.Request) (string, bool) {
	id, ok := b.sessionID(r)
	if !ok {
		return "", false
	}

	var token string
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return nil
		}
		token = string(bk.Get([]byte(id)))
		return nil
	})
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// Set stores token under a newly issued session id. The session the request arrived with, if any,
// is deleted; a session id chosen before sign-in never gains a credential.
func (b BoltStore) Set(w http.ResponseWriter, r *http.Request, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	id := uuid.New().String()
	previous, hadPrevious := b.sessionID(r)

	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return fmt.Errorf("bucket %s not found", sessionsBucket)
		}
		if hadPrevious {
			if err := bk.Delete([]byte(previous)); err != nil {
				return err
			}
		}
		return bk.Put([]byte(id), []byte(token))
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	http.SetCookie(w, persistentCookie(b.name, id, b.secure))
	return nil
}

// Clear deletes the session of the request and expires its cookie.
func (b BoltStore) Clear(w http.ResponseWriter, r *http.Request) error {
	defer http.SetCookie(w, expiredCookie(b.name, b.secure))

	id, ok := b.sessionID(r)
	if !ok {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return nil
		}
		return bk.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
