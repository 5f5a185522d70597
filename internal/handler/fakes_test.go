package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/unidocs-api/internal/dto"
	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	"github.com/noah-isme/unidocs-api/internal/service"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
	"github.com/noah-isme/unidocs-api/pkg/export"
)

const examinationsBody = "8f6c2a9e-1d4b-4c1e-9a57-3b2f6d0e7a11"

func strPtr(v string) *string { return &v }

// fakeTokens maps bearer tokens to claims and resolves the caller from the
// users held by fakeAuth, like the real authenticator does.
type fakeTokens struct {
	claims map[string]*models.JWTClaims
	auth   *fakeAuth
}

func (f fakeTokens) Authenticate(ctx context.Context, token string) (*models.JWTClaims, *policy.Actor, error) {
	if token == "expired-token" {
		return nil, nil, appErrors.ErrTokenExpired
	}
	claims, ok := f.claims[token]
	if !ok {
		return nil, nil, appErrors.ErrTokenInvalid
	}
	user, err := f.auth.Profile(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !user.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrInactiveAccount, "Account is deactivated")
	}
	actor := policy.ActorFromUser(user)
	current := *claims
	current.Role = actor.Role
	current.UniversityBodyID = actor.BodyID
	return &current, actor, nil
}

var testClaims = map[string]*models.JWTClaims{
	"admin-token": {UserID: "admin-1", Email: "admin.examinations@coep.ac.in", Role: models.RoleAdmin, UniversityBodyID: strPtr(examinationsBody)},
	"sub-token":   {UserID: "sub-1", Email: "clerk.examinations@coep.ac.in", Role: models.RoleSubAdmin, UniversityBodyID: strPtr(examinationsBody)},
	"super-token": {UserID: "super-1", Email: "root@coep.ac.in", Role: models.RoleSuperAdmin},
	"gone-token":  {UserID: "gone-1", Email: "former@coep.ac.in", Role: models.RoleSubAdmin},
}

var issuedTokens = map[string]string{"admin-1": "admin-token", "sub-1": "sub-token"}

type fakeAuth struct {
	users map[string]*models.User
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Email: "admin.examinations@coep.ac.in", FirstName: "Exam", LastName: "Admin", Role: models.RoleAdmin, UniversityBodyID: strPtr(examinationsBody), Active: true},
		"sub-1":   {ID: "sub-1", Email: "clerk.examinations@coep.ac.in", Role: models.RoleSubAdmin, UniversityBodyID: strPtr(examinationsBody), Active: true},
		"gone-1":  {ID: "gone-1", Email: "former@coep.ac.in", Role: models.RoleSubAdmin, Active: false},
		"super-1": {ID: "super-1", Email: "root@coep.ac.in", Role: models.RoleSuperAdmin, Active: true},
	}}
}

func (f *fakeAuth) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, appErrors.ErrValidation
	}
	for _, u := range f.users {
		if u.Email != req.Email {
			continue
		}
		if req.Password != "admin123" {
			return nil, appErrors.ErrInvalidCredentials
		}
		if !u.Active {
			return nil, appErrors.ErrInactiveAccount
		}
		return &models.LoginResponse{Token: issuedTokens[u.ID], RefreshToken: "refresh", ExpiresIn: 3600, User: models.NewUserInfo(u)}, nil
	}
	return nil, appErrors.ErrInvalidCredentials
}

func (f *fakeAuth) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if req.RefreshToken != "refresh" {
		return nil, appErrors.ErrTokenInvalid
	}
	return &models.RefreshTokenResponse{Token: "next", RefreshToken: "refresh-2", ExpiresIn: 3600}, nil
}

func (f *fakeAuth) Logout(ctx context.Context, refreshToken string, userID string, meta models.RequestMeta) error {
	return nil
}

func (f *fakeAuth) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest, meta models.RequestMeta) error {
	return nil
}

func (f *fakeAuth) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, appErrors.ErrTokenInvalid
	}
	return u, nil
}

func (f *fakeAuth) UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest, meta models.RequestMeta) (*models.User, error) {
	u, err := f.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	return u, nil
}

// fakePortal keeps documents in memory and applies the same status rules as
// the real services so routes can be exercised end to end.
type fakePortal struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	content   map[string][]byte
	seq       int
	lastQuery dto.DocumentListQuery
	lastCmd   dto.UploadDocumentCommand
	lastFile  string
	rejectCmd *dto.ReviewDocumentCommand
	exportFmt string
}

func newFakePortal() *fakePortal {
	return &fakePortal{docs: map[string]*models.Document{}, content: map[string][]byte{}}
}

func (p *fakePortal) Upload(ctx context.Context, actor *policy.Actor, cmd dto.UploadDocumentCommand, file *service.FileUpload, meta models.RequestMeta) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if file == nil {
		return nil, appErrors.Invalid("file", "file is required")
	}
	data, err := io.ReadAll(file.Content)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.lastCmd = cmd
	p.lastFile = file.Name
	doc := &models.Document{
		ID:               fmt.Sprintf("doc-%d", p.seq),
		Title:            cmd.Title,
		FileName:         file.Name,
		MimeType:         "application/pdf",
		FileSize:         int64(len(data)),
		UploadedBy:       actor.UserID,
		UniversityBodyID: actor.BodyID,
		IsPublic:         true,
		ApprovalStatus:   policy.InitialStatus(actor),
	}
	p.docs[doc.ID] = doc
	p.content[doc.ID] = data
	cp := *doc
	return &cp, nil
}

func (p *fakePortal) Get(ctx context.Context, actor *policy.Actor, id string) (*models.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, ok := p.docs[id]
	if !ok || !policy.CanViewDocument(actor, doc) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Document not found")
	}
	cp := *doc
	return &cp, nil
}

func (p *fakePortal) List(ctx context.Context, actor *policy.Actor, query dto.DocumentListQuery) ([]models.Document, *models.Pagination, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastQuery = query
	out := make([]models.Document, 0)
	for _, doc := range p.docs {
		if policy.CanViewDocument(actor, doc) {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, models.NewPagination(query.Page, query.PageSize, len(out)), nil
}

func (p *fakePortal) Update(ctx context.Context, actor *policy.Actor, id string, cmd dto.UpdateDocumentCommand, meta models.RequestMeta) (*models.Document, error) {
	doc, err := p.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if cmd.Title != nil {
		doc.Title = *cmd.Title
	}
	return doc, nil
}

func (p *fakePortal) Delete(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) error {
	if _, err := p.Get(ctx, actor, id); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.docs, id)
	return nil
}

func (p *fakePortal) Download(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) (*service.DocumentContent, error) {
	doc, err := p.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[id].DownloadCount++
	doc.DownloadCount = p.docs[id].DownloadCount
	data := p.content[id]
	return &service.DocumentContent{Document: doc, Reader: io.NopCloser(bytes.NewReader(data)), Size: int64(len(data))}, nil
}

func (p *fakePortal) ShareLink(ctx context.Context, actor *policy.Actor, id string) (string, time.Time, error) {
	doc, err := p.Get(ctx, actor, id)
	if err != nil {
		return "", time.Time{}, err
	}
	return "tok-" + doc.ID, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), nil
}

func (p *fakePortal) OpenShared(ctx context.Context, token string, meta models.RequestMeta) (*service.DocumentContent, error) {
	if token == "expired" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Share link has expired")
	}
	return p.Download(ctx, &policy.Actor{UserID: "link", Role: models.RoleSuperAdmin}, strings.TrimPrefix(token, "tok-"), meta)
}

func (p *fakePortal) Export(ctx context.Context, actor *policy.Actor, query dto.DocumentListQuery, rawFormat string) ([]byte, export.Format, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, "", appErrors.Invalid("format", "format must be one of: csv, pdf, xlsx")
	}
	p.exportFmt = string(format)
	return []byte("Title\nExam Rules\n"), format, nil
}

func (p *fakePortal) Stats(ctx context.Context, actor *policy.Actor) (*models.DocumentStats, error) {
	docs, _, _ := p.List(ctx, actor, dto.DocumentListQuery{})
	stats := &models.DocumentStats{Total: len(docs)}
	for _, d := range docs {
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

func (p *fakePortal) ListPending(ctx context.Context, actor *policy.Actor, query dto.DocumentListQuery) ([]models.Document, *models.Pagination, error) {
	docs, _, _ := p.List(ctx, actor, query)
	out := make([]models.Document, 0)
	for _, d := range docs {
		if d.ApprovalStatus == models.ApprovalPending && policy.CanReviewDocument(actor, &d) {
			out = append(out, d)
		}
	}
	return out, models.NewPagination(1, 20, len(out)), nil
}

func (p *fakePortal) Approve(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) (*models.Document, error) {
	return p.review(actor, id, models.ApprovalApproved, nil)
}

func (p *fakePortal) Reject(ctx context.Context, actor *policy.Actor, id string, cmd dto.ReviewDocumentCommand, meta models.RequestMeta) (*models.Document, error) {
	p.rejectCmd = &cmd
	if strings.TrimSpace(cmd.Reason) == "" {
		return nil, appErrors.Invalid("reason", "Rejection reason is required")
	}
	return p.review(actor, id, models.ApprovalRejected, &cmd.Reason)
}

func (p *fakePortal) review(actor *policy.Actor, id string, status models.ApprovalStatus, reason *string) (*models.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, ok := p.docs[id]
	if !ok || !policy.CanReviewDocument(actor, doc) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Document not found")
	}
	if doc.ApprovalStatus != models.ApprovalPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "Document has already been "+string(doc.ApprovalStatus))
	}
	doc.ApprovalStatus = status
	doc.ApprovedBy = &actor.UserID
	doc.RejectionReason = reason
	cp := *doc
	return &cp, nil
}

type fakeBodies struct {
	mu     sync.Mutex
	bodies []models.UniversityBody
}

func (f *fakeBodies) ListPublic(ctx context.Context) ([]models.PublicUniversityBody, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PublicUniversityBody, 0)
	for i := range f.bodies {
		if f.bodies[i].Active {
			out = append(out, f.bodies[i].Public())
		}
	}
	return out, nil
}

func (f *fakeBodies) List(ctx context.Context, actor *policy.Actor, query dto.UniversityBodyListQuery) ([]models.UniversityBody, *models.Pagination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies, models.NewPagination(query.Page, query.PageSize, len(f.bodies)), nil
}

func (f *fakeBodies) Get(ctx context.Context, actor *policy.Actor, id string) (*models.UniversityBody, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bodies {
		if f.bodies[i].ID == id {
			cp := f.bodies[i]
			return &cp, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "University body not found")
}

func (f *fakeBodies) Create(ctx context.Context, actor *policy.Actor, req dto.CreateUniversityBodyRequest, meta models.RequestMeta) (*models.UniversityBody, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bodies {
		if strings.EqualFold(b.Name, strings.TrimSpace(req.Name)) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "University body with this name already exists")
		}
	}
	body := models.UniversityBody{ID: "body-" + req.Name, Name: strings.TrimSpace(req.Name), Type: req.Type, Active: true}
	f.bodies = append(f.bodies, body)
	return &body, nil
}

func (f *fakeBodies) Update(ctx context.Context, actor *policy.Actor, id string, req dto.UpdateUniversityBodyRequest, meta models.RequestMeta) (*models.UniversityBody, error) {
	return f.Get(ctx, actor, id)
}

func (f *fakeBodies) Delete(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) error {
	_, err := f.Get(ctx, actor, id)
	return err
}

type fakeUsers struct {
	deleted []string
}

func (f *fakeUsers) List(ctx context.Context, actor *policy.Actor, query dto.UserListQuery) ([]models.User, *models.Pagination, error) {
	return []models.User{{ID: "u1", Email: "a@coep.ac.in", Role: models.RoleAdmin}}, models.NewPagination(1, 20, 1), nil
}

func (f *fakeUsers) Get(ctx context.Context, actor *policy.Actor, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (f *fakeUsers) Create(ctx context.Context, actor *policy.Actor, req dto.CreateUserRequest, meta models.RequestMeta) (*models.User, error) {
	return &models.User{ID: "new", Email: req.Email, Role: models.NormalizeRole(req.Role)}, nil
}

func (f *fakeUsers) Update(ctx context.Context, actor *policy.Actor, id string, req dto.UpdateUserRequest, meta models.RequestMeta) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (f *fakeUsers) Delete(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) error {
	if err := policy.EnsureNotSelf(actor.UserID, id, "Cannot delete your own account"); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUsers) ToggleStatus(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) (*models.User, error) {
	return &models.User{ID: id, Active: true}, nil
}
