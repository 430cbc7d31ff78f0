package workflow

import (
	"context"
	"sync"

	"filingdesk/internal/app/plan"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// KeyState tracks one document key through the two upload phases.
type KeyState int

const (
	KeyPending KeyState = iota
	KeyUploaded
	KeyLinked
	KeyError
)

func (s KeyState) String() string {
	switch s {
	case KeyPending:
		return "pending"
	case KeyUploaded:
		return "uploaded"
	case KeyLinked:
		return "linked"
	case KeyError:
		return "error"
	}
	return "unknown"
}

type KeyStatus struct {
	Key      string
	Required bool
	State    KeyState
	// File is kept after a failed link so the link can be retried alone.
	File StoredFile
	Err  error
}

// UploadGateway runs upload-then-link for the document keys of one plan.
type UploadGateway struct {
	plan    plan.Plan
	storage Storage
	store   Store
	log     *logrus.Entry

	mu   sync.Mutex
	keys map[string]*KeyStatus
}

func NewUploadGateway(p plan.Plan, storage Storage, store Store, log *logrus.Entry) *UploadGateway {
	g := &UploadGateway{
		plan:    p,
		storage: storage,
		store:   store,
		log:     log,
		keys:    make(map[string]*KeyStatus),
	}
	for _, key := range p.DocumentKeys() {
		g.keys[key] = &KeyStatus{Key: key, Required: p.IsRequiredDocument(key)}
	}
	return g
}

// Upload stores f and links it under key. A storage failure leaves the
// record untouched. A link failure keeps the stored file for RetryLink.
func (g *UploadGateway) Upload(ctx context.Context, submissionID, key string, f File) (KeyStatus, error) {
	if err := g.check(submissionID, key, KindUpload); err != nil {
		return KeyStatus{Key: key, State: KeyError, Err: err}, err
	}
	g.set(key, func(s *KeyStatus) {
		s.State = KeyPending
		s.Err = nil
	})

	log := g.log.WithFields(logrus.Fields{"submission_id": submissionID, "doc_key": key})

	stored, err := g.storage.Upload(ctx, f.Data, f.Name, submissionID+"/"+key)
	if err != nil {
		werr := &Error{Kind: KindUpload, Op: "upload", SubmissionID: submissionID, Key: key, Err: err}
		log.WithError(err).Warn("document upload failed")
		return g.set(key, func(s *KeyStatus) {
			s.State = KeyError
			s.Err = werr
		}), werr
	}
	g.set(key, func(s *KeyStatus) {
		s.State = KeyUploaded
		s.File = stored
	})

	return g.link(ctx, submissionID, key, stored)
}

// RetryLink repeats only the link phase with the retained file.
func (g *UploadGateway) RetryLink(ctx context.Context, submissionID, key string) (KeyStatus, error) {
	if err := g.check(submissionID, key, KindLink); err != nil {
		return KeyStatus{Key: key, State: KeyError, Err: err}, err
	}
	st := g.Status(key)
	if st.File.FileURL == "" {
		err := &Error{Kind: KindLink, Op: "retry link", SubmissionID: submissionID, Key: key, Err: ErrNothingToLink}
		return st, err
	}
	return g.link(ctx, submissionID, key, st.File)
}

// UploadAll uploads distinct keys concurrently and returns the error of
// each failed key. Keys are independent: one failure never affects another.
func (g *UploadGateway) UploadAll(ctx context.Context, submissionID string, files map[string]File) map[string]error {
	var (
		wg   conc.WaitGroup
		mu   sync.Mutex
		errs = make(map[string]error)
	)
	for key, f := range files {
		wg.Go(func() {
			if _, err := g.Upload(ctx, submissionID, key, f); err != nil {
				mu.Lock()
				errs[key] = err
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errs
}

func (g *UploadGateway) link(ctx context.Context, submissionID, key string, stored StoredFile) (KeyStatus, error) {
	if err := g.store.LinkDocument(ctx, submissionID, key, stored); err != nil {
		werr := &Error{Kind: KindLink, Op: "link", SubmissionID: submissionID, Key: key, Err: err}
		g.log.WithFields(logrus.Fields{"submission_id": submissionID, "doc_key": key, "file_url": stored.FileURL}).
			WithError(err).Warn("document link failed, file retained for retry")
		return g.set(key, func(s *KeyStatus) {
			s.State = KeyError
			s.Err = werr
		}), werr
	}
	return g.set(key, func(s *KeyStatus) {
		s.State = KeyLinked
		s.Err = nil
	}), nil
}

func (g *UploadGateway) check(submissionID, key string, kind Kind) error {
	if submissionID == "" {
		return &Error{Kind: kind, Op: "upload", Key: key, Err: ErrNoSubmission}
	}
	if !g.plan.IsDocumentKey(key) {
		return &Error{Kind: kind, Op: "upload", SubmissionID: submissionID, Key: key, Err: ErrUnknownDocument}
	}
	return nil
}

func (g *UploadGateway) set(key string, fn func(*KeyStatus)) KeyStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.keys[key]
	fn(s)
	return *s
}

// Restore marks keys already linked on the server, after a resume.
func (g *UploadGateway) Restore(docs map[string]DocumentRef) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, ref := range docs {
		s, ok := g.keys[key]
		if !ok {
			continue
		}
		s.State = KeyLinked
		s.File = StoredFile{FileURL: ref.FileURL, FileID: ref.FileID}
		s.Err = nil
	}
}

func (g *UploadGateway) Status(key string) KeyStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.keys[key]; ok {
		return *s
	}
	return KeyStatus{Key: key}
}

// Statuses returns every key in plan order.
func (g *UploadGateway) Statuses() []KeyStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]KeyStatus, 0, len(g.keys))
	for _, key := range g.plan.DocumentKeys() {
		out = append(out, *g.keys[key])
	}
	return out
}

// Linked maps linked keys to their file URL.
func (g *UploadGateway) Linked() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string)
	for key, s := range g.keys {
		if s.State == KeyLinked {
			out[key] = s.File.FileURL
		}
	}
	return out
}
