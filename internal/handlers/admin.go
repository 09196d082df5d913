package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/auth"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/store"
)

// AdminStore is the back-office view of persisted records.
type AdminStore interface {
	ListRegistrations(ctx context.Context, filter store.RegistrationFilter) ([]models.Registration, error)
	FindRegistration(ctx context.Context, id uint) (*models.Registration, error)
	ListPayments(ctx context.Context, registrationID uint) ([]models.Payment, error)
	ArchiveRegistration(ctx context.Context, id uint, archived bool) error
	DestroyRegistration(ctx context.Context, id uint) error
	RemoveAttendee(ctx context.Context, registrationID, attendeeID uint) (*models.Registration, error)
	ArchiveAttendee(ctx context.Context, registrationID, attendeeID uint, archived bool) error
	ListCounsellorPairs(ctx context.Context, includeArchived bool) ([]models.CounsellorPair, error)
	ArchiveCounsellorPair(ctx context.Context, id uint, archived bool) error
	DestroyCounsellorPair(ctx context.Context, id uint) error
	ListDonations(ctx context.Context, status models.PaymentStatus) ([]models.Donation, error)
}

// Sweeper runs the abandoned-record cleanup on demand.
type Sweeper interface {
	SweepAbandoned(ctx context.Context, now time.Time) (reconcile.SweepResult, error)
}

type AdminHandler struct {
	store       AdminStore
	sweeper     Sweeper
	authHandler *auth.AuthHandler
}

func NewAdminHandler(store AdminStore, sweeper Sweeper, authHandler *auth.AuthHandler) *AdminHandler {
	return &AdminHandler{store: store, sweeper: sweeper, authHandler: authHandler}
}

func storeFailure(msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return huma.Error404NotFound("Record not found")
	}
	return huma.Error500InternalServerError(msg, err)
}

type ListRegistrationsInput struct {
	auth.AuthInput
	Archived bool   `query:"archived" doc:"Include archived registrations"`
	Status   string `query:"status" doc:"Filter by payment status"`
}

type ListRegistrationsOutput struct {
	Body []RegistrationView
}

func (h *AdminHandler) HandleListRegistrations(ctx context.Context, input *ListRegistrationsInput) (*ListRegistrationsOutput, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.Cookie); err != nil {
		return nil, err
	}
	regs, err := h.store.ListRegistrations(ctx, store.RegistrationFilter{
		IncludeArchived: input.Archived,
		Status:          models.PaymentStatus(input.Status),
	})
	if err != nil {
		return nil, storeFailure("Failed to list registrations", err)
	}
	out := &ListRegistrationsOutput{Body: make([]RegistrationView, 0, len(regs))}
	for i := range regs {
		out.Body = append(out.Body, registrationView(&regs[i]))
	}
	return out, nil
}

type AdminRecordInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

type PaymentView struct {
	IntentID    string    `json:"intent_id"`
	Amount      string    `json:"amount"`
	PaymentType string    `json:"payment_type"`
	CreatedAt   time.Time `json:"created_at"`
}

type RegistrationDetailOutput struct {
	Body struct {
		Registration RegistrationView `json:"registration"`
		Payments     []PaymentView    `json:"payments"`
	}
}

func (h *AdminHandler) HandleGetRegistration(ctx context.Context, input *AdminRecordInput) (*RegistrationDetailOutput, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.Cookie); err != nil {
		return nil, err
	}
	reg, err := h.store.FindRegistration(ctx, input.ID)
	if err != nil {
		return nil, storeFailure("Failed to load registration", err)
	}
	if reg == nil {
		return nil, huma.Error404NotFound("Registration not found")
	}
	payments, err := h.store.ListPayments(ctx, reg.ID)
	if err != nil {
		return nil, storeFailure("Failed to load payments", err)
	}

	out := &RegistrationDetailOutput{}
	out.Body.Registration = registrationView(reg)
	out.Body.Payments = make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		out.Body.Payments = append(out.Body.Payments, PaymentView{
			IntentID:    p.IntentID,
			Amount:      money(p.Amount.Decimal),
			PaymentType: string(p.PaymentType),
			CreatedAt:   p.CreatedAt,
		})
	}
	return out, nil
}

type ArchiveInput struct {
	auth.AuthInput
	ID   uint `path:"id"`
	Body struct {
		Archived bool `json:"archived"`
	}
}

func (h *AdminHandler) HandleArchiveRegistration(ctx context.Context, input *ArchiveInput) (*struct{}, error) {
	admin, err := h.authHandler.RequireAdmin(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}
	if err := h.store.ArchiveRegistration(ctx, input.ID, input.Body.Archived); err != nil {
		return nil, storeFailure("Failed to archive registration", err)
	}
	logger.Infow("admin_registration_archived", "registration_id", input.ID, "archived", input.Body.Archived, "user_id", admin.ID)
	return nil, nil
}

func (h *AdminHandler) HandleDestroyRegistration(ctx context.Context, input *AdminRecordInput) (*struct{}, error) {
	admin, err := h.authHandler.RequireAdmin(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}
	if err := h.store.DestroyRegistration(ctx, input.ID); err != nil {
		return nil, storeFailure("Failed to delete registration", err)
	}
	logger.Infow("admin_registration_destroyed", "registration_id", input.ID, "user_id", admin.ID)
	return nil, nil
}

type AttendeeInput struct {
	auth.AuthInput
	ID         uint `path:"id"`
	AttendeeID uint `path:"attendee_id"`
}

type RegistrationOutput struct {
	Body RegistrationView
}

// HandleRemoveAttendee deletes an attendee and rescales what the family has
// paid to the remaining attendees.
func (h *AdminHandler) HandleRemoveAttendee(ctx context.Context, input *AttendeeInput) (*RegistrationOutput, error) {
	admin, err := h.authHandler.RequireAdmin(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}
	reg, err := h.store.RemoveAttendee(ctx, input.ID, input.AttendeeID)
	if err != nil {
		return nil, storeFailure("Failed to remove attendee", err)
	}
	logger.Infow("admin_attendee_removed", "registration_id", input.ID, "attendee_id", input.AttendeeID, "amount_paid", reg.AmountPaid.String(), "user_id", admin.ID)
	return &RegistrationOutput{Body: registrationView(reg)}, nil
}

type ArchiveAttendeeInput struct {
	auth.AuthInput
	ID         uint `path:"id"`
	AttendeeID uint `path:"attendee_id"`
	Body       struct {
		Archived bool `json:"archived"`
	}
}

func (h *AdminHandler) HandleArchiveAttendee(ctx context.Context, input *ArchiveAttendeeInput) (*struct{}, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.Cookie); err != nil {
		return nil, err
	}
	if err := h.store.ArchiveAttendee(ctx, input.ID, input.AttendeeID, input.Body.Archived); err != nil {
		return nil, storeFailure("Failed to archive attendee", err)
	}
	return nil, nil
}

type ListCounsellorsInput struct {
	auth.AuthInput
	Archived bool `query:"archived" doc:"Include archived counsellors"`
}

type ListCounsellorsOutput struct {
	Body []models.CounsellorPair
}

func (h *AdminHandler) HandleListCounsellors(ctx context.Context, input *ListCounsellorsInput) (*ListCounsellorsOutput, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.Cookie); err != nil {
		return nil, err
	}
	pairs, err := h.store.ListCounsellorPairs(ctx, input.Archived)
	if err != nil {
		return nil, storeFailure("Failed to list counsellors", err)
	}
	return &ListCounsellorsOutput{Body: pairs}, nil
}

func (h *AdminHandler) HandleArchiveCounsellors(ctx context.Context, input *ArchiveInput) (*struct{}, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.Cookie); err != nil {
		return nil, err
	}
	if err := h.store.ArchiveCounsellorPair(ctx, input.ID, input.Body.Archived); err != nil {
		return nil, storeFailure("Failed to archive counsellors", err)
	}
	return nil, nil
}

func (h *AdminHandler) HandleDestroyCounsellors(ctx context.Context, input *AdminRecordInput) (*struct{}, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.Cookie); err != nil {
		return nil, err
	}
	if err := h.store.DestroyCounsellorPair(ctx, input.ID); err != nil {
		return nil, storeFailure("Failed to delete counsellors", err)
	}
	return nil, nil
}

type ListDonationsInput struct {
	auth.AuthInput
	Status string `query:"status" doc:"Filter by payment status"`
}

type ListDonationsOutput struct {
	Body []DonationView
}

func (h *AdminHandler) HandleListDonations(ctx context.Context, input *ListDonationsInput) (*ListDonationsOutput, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.Cookie); err != nil {
		return nil, err
	}
	donations, err := h.store.ListDonations(ctx, models.PaymentStatus(input.Status))
	if err != nil {
		return nil, storeFailure("Failed to list donations", err)
	}
	out := &ListDonationsOutput{Body: make([]DonationView, 0, len(donations))}
	for i := range donations {
		out.Body = append(out.Body, donationView(&donations[i]))
	}
	return out, nil
}

type SweepOutput struct {
	Body struct {
		Registrations int `json:"registrations"`
		Donations     int `json:"donations"`
		Reconciled    int `json:"reconciled"`
		Skipped       int `json:"skipped"`
	}
}

func (h *AdminHandler) HandleSweep(ctx context.Context, input *auth.AuthInput) (*SweepOutput, error) {
	admin, err := h.authHandler.RequireAdmin(ctx, input.Cookie)
	if err != nil {
		return nil, err
	}
	result, err := h.sweeper.SweepAbandoned(ctx, time.Now())
	if err != nil {
		return nil, huma.Error500InternalServerError("Sweep failed", err)
	}
	logger.Infow("admin_sweep", "user_id", admin.ID, "registrations", result.Registrations, "donations", result.Donations, "reconciled", result.Reconciled, "skipped", result.Skipped)

	out := &SweepOutput{}
	out.Body.Registrations = result.Registrations
	out.Body.Donations = result.Donations
	out.Body.Reconciled = result.Reconciled
	out.Body.Skipped = result.Skipped
	return out, nil
}

func (h *AdminHandler) register(api huma.API, protect func(*huma.Operation)) {
	op := func(id, method, path, summary string) huma.Operation {
		o := huma.Operation{
			OperationID: id,
			Method:      method,
			Path:        path,
			Summary:     summary,
			Tags:        []string{"Admin"},
		}
		protect(&o)
		return o
	}

	huma.Register(api, op("admin-list-registrations", http.MethodGet, "/admin/registrations", "List registrations"), h.HandleListRegistrations)
	huma.Register(api, op("admin-get-registration", http.MethodGet, "/admin/registrations/{id}", "Registration with its payments"), h.HandleGetRegistration)
	huma.Register(api, op("admin-archive-registration", http.MethodPost, "/admin/registrations/{id}/archive", "Archive or restore a registration"), h.HandleArchiveRegistration)
	huma.Register(api, op("admin-destroy-registration", http.MethodDelete, "/admin/registrations/{id}", "Delete a registration"), h.HandleDestroyRegistration)
	huma.Register(api, op("admin-remove-attendee", http.MethodDelete, "/admin/registrations/{id}/attendees/{attendee_id}", "Remove an attendee"), h.HandleRemoveAttendee)
	huma.Register(api, op("admin-archive-attendee", http.MethodPost, "/admin/registrations/{id}/attendees/{attendee_id}/archive", "Archive or restore an attendee"), h.HandleArchiveAttendee)
	huma.Register(api, op("admin-list-counsellors", http.MethodGet, "/admin/counsellors", "List counsellor pairs"), h.HandleListCounsellors)
	huma.Register(api, op("admin-archive-counsellors", http.MethodPost, "/admin/counsellors/{id}/archive", "Archive or restore a counsellor pair"), h.HandleArchiveCounsellors)
	huma.Register(api, op("admin-destroy-counsellors", http.MethodDelete, "/admin/counsellors/{id}", "Delete a counsellor pair"), h.HandleDestroyCounsellors)
	huma.Register(api, op("admin-list-donations", http.MethodGet, "/admin/donations", "List donations"), h.HandleListDonations)
	huma.Register(api, op("admin-sweep", http.MethodPost, "/admin/sweep", "Remove abandoned pending records now"), h.HandleSweep)
}
