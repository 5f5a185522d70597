package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
	"github.com/noah-isme/unidocs-api/pkg/jobs"
	"github.com/noah-isme/unidocs-api/pkg/storage"
)

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func superAdmin() *policy.Actor {
	return &policy.Actor{UserID: "super-1", Role: models.RoleSuperAdmin}
}

func adminOf(body string) *policy.Actor {
	return &policy.Actor{UserID: "admin-" + body, Role: models.RoleAdmin, BodyID: strPtr(body)}
}

func subAdminOf(body string) *policy.Actor {
	return &policy.Actor{UserID: "sub-" + body, Role: models.RoleSubAdmin, BodyID: strPtr(body)}
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (a *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return a.err
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type memUserRepo struct {
	mu            sync.Mutex
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revokedUsers  []string
	lastLogin     map[string]time.Time
	createErr     error
}

func newMemUserRepo(users ...*models.User) *memUserRepo {
	r := &memUserRepo{users: map[string]*models.User{}, refreshTokens: map[string]*models.RefreshToken{}, lastLogin: map[string]time.Time{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, len(out), nil
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = active
	return nil
}

func (r *memUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLogin[id] = ts
	return nil
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *memUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revokedUsers = append(r.revokedUsers, userID)
	for _, t := range r.refreshTokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (r *memUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.refreshTokens[token.Token] = &cp
	return nil
}

func (r *memUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r *memUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.refreshTokens {
		if t.ID == id {
			if t.Revoked {
				return sql.ErrNoRows
			}
			t.Revoked = true
			t.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *memUserRepo) PurgeRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, t := range r.refreshTokens {
		if t.Revoked || t.ExpiresAt.Before(before) {
			delete(r.refreshTokens, k)
			n++
		}
	}
	return n, nil
}

type memBodyRepo struct {
	mu        sync.Mutex
	bodies    map[string]*models.UniversityBody
	detached  map[string]int64
	listCalls int
}

func newMemBodyRepo(bodies ...*models.UniversityBody) *memBodyRepo {
	r := &memBodyRepo{bodies: map[string]*models.UniversityBody{}, detached: map[string]int64{}}
	for _, b := range bodies {
		r.bodies[b.ID] = b
	}
	return r
}

func (r *memBodyRepo) List(ctx context.Context, filter models.UniversityBodyFilter) ([]models.UniversityBody, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.UniversityBody, 0, len(r.bodies))
	for _, b := range r.bodies {
		if filter.Type != "" && string(b.Type) != filter.Type {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (r *memBodyRepo) ListPublic(ctx context.Context) ([]models.PublicUniversityBody, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	out := make([]models.PublicUniversityBody, 0, len(r.bodies))
	for _, b := range r.bodies {
		if b.Active {
			out = append(out, b.Public())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memBodyRepo) FindByID(ctx context.Context, id string) (*models.UniversityBody, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bodies[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (r *memBodyRepo) FindByName(ctx context.Context, name string) (*models.UniversityBody, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bodies {
		if strings.EqualFold(b.Name, strings.TrimSpace(name)) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memBodyRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bodies[id]
	return ok, nil
}

func (r *memBodyRepo) Create(ctx context.Context, body *models.UniversityBody) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *body
	r.bodies[body.ID] = &cp
	return nil
}

func (r *memBodyRepo) Update(ctx context.Context, body *models.UniversityBody) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bodies[body.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *body
	r.bodies[body.ID] = &cp
	return nil
}

func (r *memBodyRepo) Delete(ctx context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bodies[id]; !ok {
		return 0, sql.ErrNoRows
	}
	delete(r.bodies, id)
	return r.detached[id], nil
}

// memDocRepo mirrors the SQL behaviour of the document repository, including
// the compare-and-set review update.
type memDocRepo struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	blobs     map[string][]byte
	createErr error
	lastList  models.DocumentFilter
}

func newMemDocRepo(docs ...*models.Document) *memDocRepo {
	r := &memDocRepo{docs: map[string]*models.Document{}, blobs: map[string][]byte{}}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *memDocRepo) Create(ctx context.Context, doc *models.Document, content []byte) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	if content != nil {
		r.blobs[doc.ID] = content
	}
	return nil
}

func (r *memDocRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (r *memDocRepo) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastList = filter
	matched := make([]models.Document, 0)
	for _, d := range r.docs {
		if !filter.Visibility.Matches(d) {
			continue
		}
		if filter.Status != "" && d.ApprovalStatus != filter.Status {
			continue
		}
		if filter.UniversityBodyID != "" && (d.UniversityBodyID == nil || *d.UniversityBodyID != filter.UniversityBodyID) {
			continue
		}
		if filter.UploadedBy != "" && d.UploadedBy != filter.UploadedBy {
			continue
		}
		matched = append(matched, *d)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	p := models.NewPagination(filter.Page, filter.PageSize, total)
	start := (p.Page - 1) * p.PageSize
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memDocRepo) Stats(ctx context.Context, visibility models.DocumentVisibility) (*models.DocumentStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &models.DocumentStats{}
	for _, d := range r.docs {
		if !visibility.Matches(d) {
			continue
		}
		stats.Total++
		stats.TotalDownloads += d.DownloadCount
		switch d.ApprovalStatus {
		case models.ApprovalPending:
			stats.Pending++
		case models.ApprovalApproved:
			stats.Approved++
		case models.ApprovalRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

func (r *memDocRepo) Update(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.docs[doc.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Title = doc.Title
	existing.Description = doc.Description
	existing.IsPublic = doc.IsPublic
	existing.UniversityBodyID = doc.UniversityBodyID
	return nil
}

func (r *memDocRepo) Review(ctx context.Context, review models.DocumentReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[review.DocumentID]
	if !ok || d.ApprovalStatus != models.ApprovalPending {
		return sql.ErrNoRows
	}
	reviewer := review.ReviewerID
	at := review.ReviewedAt
	d.ApprovalStatus = review.Status
	d.ApprovedBy = &reviewer
	d.ApprovedAt = &at
	d.RejectionReason = review.RejectionReason
	return nil
}

func (r *memDocRepo) IncrementDownloads(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.DownloadCount++
	return nil
}

func (r *memDocRepo) Content(ctx context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return b, nil
}

func (r *memDocRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.docs, id)
	delete(r.blobs, id)
	return nil
}

func (r *memDocRepo) ReferencedKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for _, d := range r.docs {
		for _, k := range keys {
			if d.StorageKey == k {
				out[k] = true
			}
		}
	}
	return out, nil
}

func (r *memDocRepo) get(id string) *models.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id]
}

type memBlobStore struct {
	mu      sync.Mutex
	name    string
	objects map[string][]byte
	old     map[string]bool
	putErr  error
	deleted []string
}

func newMemBlobStore(name string) *memBlobStore {
	return &memBlobStore{name: name, objects: map[string][]byte{}, old: map[string]bool{}}
}

func (s *memBlobStore) Name() string { return s.name }

func (s *memBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	if _, ok := s.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *memBlobStore) Keys(ctx context.Context, modifiedBefore time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0)
	for k := range s.objects {
		if s.old[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// memCacheRepo stores values by reference; tests only read back what they wrote.
type memCacheRepo struct {
	mu          sync.Mutex
	values      map[string]interface{}
	invalidated []string
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{values: map[string]interface{}{}}
}

func (c *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *[]models.PublicUniversityBody:
		*d = v.([]models.PublicUniversityBody)
	case *models.DocumentStats:
		*d = *v.(*models.DocumentStats)
	}
	return nil
}

func (c *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.values {
		if strings.HasPrefix(k, prefix) {
			delete(c.values, k)
		}
	}
	return nil
}
