package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"salonsched/internal/calendar"
	"salonsched/internal/domain"
	"salonsched/internal/store"
)

const maxAppointmentDuration = 24 * time.Hour

// Service drives the booking pipeline: validation, local conflict check,
// external availability check, committed write, best-effort mirror. The local
// store is authoritative throughout; the external calendar is only trusted to
// veto a booking before commit, never to roll one back after.
type Service struct {
	repo          store.AppointmentRepository
	registry      store.Registry
	queue         store.MirrorQueue
	gateway       calendar.Gateway
	log           *slog.Logger
	remoteTimeout time.Duration
}

func NewService(repo store.AppointmentRepository, registry store.Registry, queue store.MirrorQueue, gateway calendar.Gateway, log *slog.Logger, remoteTimeout time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if remoteTimeout <= 0 {
		remoteTimeout = 5 * time.Second
	}
	return &Service{
		repo:          repo,
		registry:      registry,
		queue:         queue,
		gateway:       gateway,
		log:           log.With(slog.String("component", "booking")),
		remoteTimeout: remoteTimeout,
	}
}

type CreateInput struct {
	CompanyID      uuid.UUID
	ClientID       uuid.UUID
	ServiceID      uuid.UUID
	StaffID        uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Notes          string
	IdempotencyKey string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	if in.CompanyID == uuid.Nil {
		return domain.Appointment{}, validationError("company_id is required")
	}
	if in.ClientID == uuid.Nil {
		return domain.Appointment{}, validationError("client_id is required")
	}
	if in.ServiceID == uuid.Nil {
		return domain.Appointment{}, validationError("service_id is required")
	}
	if in.StaffID == uuid.Nil {
		return domain.Appointment{}, validationError("staff_id is required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if end.Equal(start) || end.Before(start) {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}
	if end.Sub(start) > maxAppointmentDuration {
		return domain.Appointment{}, validationError("duration too long")
	}

	if err := s.checkReferences(ctx, in.CompanyID, in.ClientID, in.ServiceID, in.StaffID); err != nil {
		return domain.Appointment{}, err
	}
	loc, err := s.companyLocation(ctx, in.CompanyID)
	if err != nil {
		return domain.Appointment{}, err
	}

	appt := domain.Appointment{
		CompanyID: in.CompanyID,
		ClientID:  in.ClientID,
		ServiceID: in.ServiceID,
		StaffID:   in.StaffID,
		StartTime: start,
		EndTime:   end,
		Status:    domain.AppointmentScheduled,
		Notes:     strings.TrimSpace(in.Notes),
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("salonsched:create_appointment:"+in.CompanyID.String()+":"+key))
	}

	// Local snapshot check; the commit re-checks under the staff lock.
	if err := s.checkLocalConflicts(ctx, s.repo, appt, uuid.Nil, loc); err != nil {
		return domain.Appointment{}, err
	}

	link, err := s.repo.StaffCalendarLink(ctx, appt.CompanyID, appt.StaffID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := s.checkRemoteFree(ctx, link, start, end); err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	var entry domain.MirrorEntry
	err = s.repo.InStaffTransaction(ctx, appt.StaffID, func(ctx context.Context, tx store.CalendarTx) error {
		if err := s.checkLocalConflicts(ctx, tx, appt, uuid.Nil, loc); err != nil {
			return err
		}
		created, err := tx.CreateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = created
		if link != nil {
			e, err := tx.EnqueueMirror(ctx, mirrorEntryFor(created, domain.MirrorOpCreate))
			if err != nil {
				return err
			}
			entry = e
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Appointment{}, &SlotUnavailableError{Reason: ReasonOverlap}
		}
		return domain.Appointment{}, err
	}

	if link != nil && entry.ID != 0 {
		if extID := s.attemptMirror(ctx, *link, entry); extID != "" {
			out.ExternalEventID = extID
		}
	}
	return out, nil
}

type UpdateInput struct {
	ClientID  *uuid.UUID
	ServiceID *uuid.UUID
	StaffID   *uuid.UUID
	StartTime *time.Time
	EndTime   *time.Time
	Status    *domain.AppointmentStatus
	Notes     *string
}

// Update handles reschedules, staff reassignment, notes edits, and forward
// status changes. Cancellation goes through Cancel. A change that moves the
// interval or the staff member re-runs the full conflict pipeline, excluding
// the appointment's own prior slot.
func (s *Service) Update(ctx context.Context, companyID, appointmentID uuid.UUID, in UpdateInput) (domain.Appointment, error) {
	if in.Status != nil && *in.Status == domain.AppointmentCanceled {
		return domain.Appointment{}, validationError("use the cancel operation to cancel")
	}

	existing, err := s.repo.Get(ctx, companyID, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if existing.Status == domain.AppointmentCanceled {
		return domain.Appointment{}, validationError("appointment is canceled")
	}

	next := existing
	if in.ClientID != nil {
		next.ClientID = *in.ClientID
	}
	if in.ServiceID != nil {
		next.ServiceID = *in.ServiceID
	}
	if in.StaffID != nil {
		next.StaffID = *in.StaffID
	}
	if in.StartTime != nil {
		next.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		next.EndTime = in.EndTime.UTC()
	}
	if in.Notes != nil {
		next.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.Status != nil {
		if !existing.Status.CanTransitionTo(*in.Status) {
			return domain.Appointment{}, validationError("invalid status transition")
		}
		next.Status = *in.Status
	}

	if next.ClientID == uuid.Nil || next.ServiceID == uuid.Nil || next.StaffID == uuid.Nil {
		return domain.Appointment{}, validationError("client_id, service_id and staff_id are required")
	}
	if next.EndTime.Equal(next.StartTime) || next.EndTime.Before(next.StartTime) {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}
	if next.EndTime.Sub(next.StartTime) > maxAppointmentDuration {
		return domain.Appointment{}, validationError("duration too long")
	}

	staffChanged := next.StaffID != existing.StaffID
	timingChanged := staffChanged ||
		!next.StartTime.Equal(existing.StartTime) ||
		!next.EndTime.Equal(existing.EndTime)
	if timingChanged && existing.Status == domain.AppointmentCompleted {
		return domain.Appointment{}, validationError("completed appointment cannot be rescheduled")
	}

	if err := s.checkReferences(ctx, companyID, next.ClientID, next.ServiceID, next.StaffID); err != nil {
		return domain.Appointment{}, err
	}
	loc, err := s.companyLocation(ctx, companyID)
	if err != nil {
		return domain.Appointment{}, err
	}

	link, err := s.repo.StaffCalendarLink(ctx, companyID, next.StaffID)
	if err != nil {
		return domain.Appointment{}, err
	}
	var oldLink *domain.StaffCalendarLink
	if staffChanged {
		oldLink, err = s.repo.StaffCalendarLink(ctx, companyID, existing.StaffID)
		if err != nil {
			return domain.Appointment{}, err
		}
	}

	if timingChanged {
		if err := s.checkLocalConflicts(ctx, s.repo, next, existing.ID, loc); err != nil {
			return domain.Appointment{}, err
		}
		if err := s.checkRemoteFree(ctx, link, next.StartTime, next.EndTime); err != nil {
			return domain.Appointment{}, err
		}
	}

	var out domain.Appointment
	var entries []mirrorAttempt
	err = s.repo.InStaffTransaction(ctx, next.StaffID, func(ctx context.Context, tx store.CalendarTx) error {
		entries = entries[:0]
		cur, err := tx.GetAppointment(ctx, companyID, appointmentID)
		if err != nil {
			return err
		}
		next.ExternalEventID = cur.ExternalEventID
		next.UpdatedAt = time.Time{}

		if timingChanged {
			if err := s.checkLocalConflicts(ctx, tx, next, existing.ID, loc); err != nil {
				return err
			}
		}

		updated, err := tx.UpdateAppointment(ctx, next)
		if err != nil {
			return err
		}
		out = updated

		// Staff reassignment moves the mirror: drop the event from the
		// old calendar, then create it on the new one.
		if staffChanged && oldLink != nil {
			del := mirrorEntryFor(updated, domain.MirrorOpDelete)
			del.StaffID = existing.StaffID
			del.ExternalEventID = cur.ExternalEventID
			e, err := tx.EnqueueMirror(ctx, del)
			if err != nil {
				return err
			}
			entries = append(entries, mirrorAttempt{link: *oldLink, entry: e})
		}
		if link != nil {
			op := domain.MirrorOpUpdate
			if staffChanged {
				op = domain.MirrorOpCreate
			}
			e := mirrorEntryFor(updated, op)
			if op == domain.MirrorOpUpdate {
				e.ExternalEventID = cur.ExternalEventID
			}
			queued, err := tx.EnqueueMirror(ctx, e)
			if err != nil {
				return err
			}
			entries = append(entries, mirrorAttempt{link: *link, entry: queued})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Appointment{}, &SlotUnavailableError{Reason: ReasonOverlap}
		}
		return domain.Appointment{}, err
	}

	for _, a := range entries {
		if extID := s.attemptMirror(ctx, a.link, a.entry); extID != "" {
			out.ExternalEventID = extID
		}
	}
	return out, nil
}

// Cancel is a status change: it skips conflict checks, removes the
// appointment from future overlap consideration, and drops the mirrored
// event from the external calendar.
func (s *Service) Cancel(ctx context.Context, companyID, appointmentID uuid.UUID) (domain.Appointment, error) {
	existing, err := s.repo.Get(ctx, companyID, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if existing.Status == domain.AppointmentCanceled {
		return existing, nil
	}
	if !existing.Status.CanTransitionTo(domain.AppointmentCanceled) {
		return domain.Appointment{}, validationError("completed appointment cannot be canceled")
	}

	link, err := s.repo.StaffCalendarLink(ctx, companyID, existing.StaffID)
	if err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	var entry domain.MirrorEntry
	err = s.repo.InStaffTransaction(ctx, existing.StaffID, func(ctx context.Context, tx store.CalendarTx) error {
		cur, err := tx.GetAppointment(ctx, companyID, appointmentID)
		if err != nil {
			return err
		}
		if cur.Status == domain.AppointmentCanceled {
			out = cur
			return nil
		}
		cur.Status = domain.AppointmentCanceled
		cur.UpdatedAt = time.Time{}
		updated, err := tx.UpdateAppointment(ctx, cur)
		if err != nil {
			return err
		}
		out = updated
		if link != nil {
			del := mirrorEntryFor(updated, domain.MirrorOpDelete)
			del.ExternalEventID = updated.ExternalEventID
			e, err := tx.EnqueueMirror(ctx, del)
			if err != nil {
				return err
			}
			entry = e
		}
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if link != nil && entry.ID != 0 {
		s.attemptMirror(ctx, *link, entry)
	}
	return out, nil
}

// Delete removes the local appointment first, then best-effort deletes the
// remote event. The local store is authoritative either way.
func (s *Service) Delete(ctx context.Context, companyID, appointmentID uuid.UUID) error {
	existing, err := s.repo.Get(ctx, companyID, appointmentID)
	if err != nil {
		return err
	}

	link, err := s.repo.StaffCalendarLink(ctx, companyID, existing.StaffID)
	if err != nil {
		return err
	}

	var entry domain.MirrorEntry
	err = s.repo.InStaffTransaction(ctx, existing.StaffID, func(ctx context.Context, tx store.CalendarTx) error {
		cur, err := tx.GetAppointment(ctx, companyID, appointmentID)
		if err != nil {
			return err
		}
		if err := tx.DeleteAppointment(ctx, companyID, appointmentID); err != nil {
			return err
		}
		if link != nil {
			// The row is gone, so the entry must carry the external id.
			del := mirrorEntryFor(cur, domain.MirrorOpDelete)
			del.ExternalEventID = cur.ExternalEventID
			e, err := tx.EnqueueMirror(ctx, del)
			if err != nil {
				return err
			}
			entry = e
		}
		return nil
	})
	if err != nil {
		return err
	}

	if link != nil && entry.ID != 0 {
		s.attemptMirror(ctx, *link, entry)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, companyID, appointmentID uuid.UUID) (domain.Appointment, error) {
	if companyID == uuid.Nil {
		return domain.Appointment{}, validationError("company_id is required")
	}
	return s.repo.Get(ctx, companyID, appointmentID)
}

// List is read-only and bypasses the booking pipeline.
func (s *Service) List(ctx context.Context, companyID uuid.UUID, staffID *uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if companyID == uuid.Nil {
		return nil, validationError("company_id is required")
	}
	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}
	return s.repo.List(ctx, companyID, staffID, start, end)
}

// AvailableSlots lists bookable start times for a staff member on one
// calendar day, combining working hours, schedule blocks, and non-canceled
// appointments. It does not consult the external calendar; the remote check
// happens when a slot is actually booked.
func (s *Service) AvailableSlots(ctx context.Context, companyID, staffID uuid.UUID, day time.Time, duration, step time.Duration) ([]time.Time, error) {
	if companyID == uuid.Nil {
		return nil, validationError("company_id is required")
	}
	if staffID == uuid.Nil {
		return nil, validationError("staff_id is required")
	}
	if duration <= 0 {
		return nil, validationError("duration must be positive")
	}
	if step <= 0 {
		step = duration
	}

	ok, err := s.registry.StaffExists(ctx, companyID, staffID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	loc, err := s.companyLocation(ctx, companyID)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	hours, err := s.repo.ListWorkingHours(ctx, companyID, staffID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.repo.ListScheduleBlocks(ctx, companyID, staffID, dateOnly(dayStart), dateOnly(dayStart))
	if err != nil {
		return nil, err
	}
	appts, err := s.repo.ListStaffAppointments(ctx, companyID, staffID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	var busy []domain.TimeSpan
	for _, a := range appts {
		if a.Status == domain.AppointmentCanceled {
			continue
		}
		busy = append(busy, domain.TimeSpan{Start: a.StartTime, End: a.EndTime})
	}
	for _, b := range blocks {
		bStart, bEnd := b.Window(loc)
		busy = append(busy, domain.TimeSpan{Start: bStart, End: bEnd})
	}

	windows := workingWindows(hours, staffID, dayStart, loc)
	var slots []time.Time
	for _, w := range windows {
		slots = append(slots, domain.AvailableSlots(w.Start, w.End, duration, step, busy)...)
	}
	return slots, nil
}

type mirrorAttempt struct {
	link  domain.StaffCalendarLink
	entry domain.MirrorEntry
}

func (s *Service) checkReferences(ctx context.Context, companyID, clientID, serviceID, staffID uuid.UUID) error {
	ok, err := s.registry.ClientExists(ctx, companyID, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return validationError("client not found")
	}
	ok, err = s.registry.ServiceExists(ctx, companyID, serviceID)
	if err != nil {
		return err
	}
	if !ok {
		return validationError("service not found")
	}
	ok, err = s.registry.StaffExists(ctx, companyID, staffID)
	if err != nil {
		return err
	}
	if !ok {
		return validationError("staff not found")
	}
	return nil
}

func (s *Service) companyLocation(ctx context.Context, companyID uuid.UUID) (*time.Location, error) {
	loc, err := s.registry.CompanyLocation(ctx, companyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationError("company not found")
		}
		return nil, err
	}
	return loc, nil
}

// availabilityReader is the slice of the store both the repository and the
// in-transaction view satisfy; the local check runs once against a snapshot
// and once more under the staff lock.
type availabilityReader interface {
	ListStaffAppointments(ctx context.Context, companyID, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListScheduleBlocks(ctx context.Context, companyID, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.ScheduleBlock, error)
	ListWorkingHours(ctx context.Context, companyID, staffID uuid.UUID) ([]domain.WorkingHours, error)
}

func (s *Service) checkLocalConflicts(ctx context.Context, r availabilityReader, appt domain.Appointment, excludeID uuid.UUID, loc *time.Location) error {
	hours, err := r.ListWorkingHours(ctx, appt.CompanyID, appt.StaffID)
	if err != nil {
		return err
	}
	if !domain.WithinWorkingHours(hours, appt.StaffID, appt.StartTime, appt.EndTime, loc) {
		return &SlotUnavailableError{Reason: ReasonHours}
	}

	blocks, err := r.ListScheduleBlocks(ctx, appt.CompanyID, appt.StaffID,
		dateOnly(appt.StartTime.In(loc)), dateOnly(appt.EndTime.In(loc)))
	if err != nil {
		return err
	}
	if domain.HasBlockConflict(blocks, appt.StaffID, appt.StartTime, appt.EndTime, loc) {
		return &SlotUnavailableError{Reason: ReasonBlock}
	}

	appts, err := r.ListStaffAppointments(ctx, appt.CompanyID, appt.StaffID, appt.StartTime, appt.EndTime)
	if err != nil {
		return err
	}
	if domain.HasAppointmentOverlap(appts, appt.StaffID, appt.StartTime, appt.EndTime, excludeID) {
		return &SlotUnavailableError{Reason: ReasonOverlap}
	}
	return nil
}

// checkRemoteFree is the fail-closed external availability check. A staff
// member without a calendar link has no external constraint.
func (s *Service) checkRemoteFree(ctx context.Context, link *domain.StaffCalendarLink, start, end time.Time) error {
	if link == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	free, err := s.gateway.CheckFree(rctx, *link, start, end)
	if err != nil {
		s.log.Warn("external availability check failed",
			slog.String("staff_id", link.StaffID.String()),
			slog.Any("err", err),
		)
		return ErrExternalAvailabilityUnknown
	}
	if !free {
		return &SlotUnavailableError{Reason: ReasonExternal}
	}
	return nil
}

// attemptMirror performs the synchronous best-effort push of a queued mirror
// entry. Failure is logged and left for the mirror worker; it never fails the
// request, because the committed local write is authoritative.
func (s *Service) attemptMirror(ctx context.Context, link domain.StaffCalendarLink, entry domain.MirrorEntry) string {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	var snap calendar.EventSnapshot
	if len(entry.Payload) > 0 {
		if err := json.Unmarshal(entry.Payload, &snap); err != nil {
			s.log.Error("mirror payload corrupt", slog.Int64("entry_id", entry.ID), slog.Any("err", err))
			return ""
		}
	}

	var extID string
	var err error
	switch entry.Op {
	case domain.MirrorOpCreate:
		extID, err = s.gateway.CreateEvent(rctx, link, snap)
	case domain.MirrorOpUpdate:
		if entry.ExternalEventID == "" {
			extID, err = s.gateway.CreateEvent(rctx, link, snap)
		} else {
			err = s.gateway.UpdateEvent(rctx, link, entry.ExternalEventID, snap)
		}
	case domain.MirrorOpDelete:
		if entry.ExternalEventID == "" {
			// Nothing was ever mirrored remotely.
			err = nil
		} else {
			err = s.gateway.DeleteEvent(rctx, link, entry.ExternalEventID)
		}
	}
	if err != nil {
		s.log.Warn("calendar mirror failed, queued for retry",
			slog.Int64("entry_id", entry.ID),
			slog.String("op", string(entry.Op)),
			slog.String("appointment_id", entry.AppointmentID.String()),
			slog.Any("err", err),
		)
		return ""
	}

	if err := s.queue.Complete(ctx, entry.ID, extID); err != nil {
		// The worker will redo the call; remote ops are idempotent enough
		// (update/delete) or deduplicated by supersession.
		s.log.Warn("mirror completion not recorded", slog.Int64("entry_id", entry.ID), slog.Any("err", err))
	}
	return extID
}

func mirrorEntryFor(appt domain.Appointment, op domain.MirrorOp) domain.MirrorEntry {
	entry := domain.MirrorEntry{
		AppointmentID: appt.ID,
		CompanyID:     appt.CompanyID,
		StaffID:       appt.StaffID,
		Op:            op,
	}
	if op != domain.MirrorOpDelete {
		snap := calendar.EventSnapshot{
			AppointmentID: appt.ID,
			Summary:       "Salon appointment",
			Notes:         appt.Notes,
			Start:         appt.StartTime,
			End:           appt.EndTime,
		}
		payload, _ := json.Marshal(snap)
		entry.Payload = payload
	}
	return entry
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type window struct {
	Start time.Time
	End   time.Time
}

func workingWindows(hours []domain.WorkingHours, staffID uuid.UUID, dayStart time.Time, loc *time.Location) []window {
	declared := false
	var windows []window
	for _, h := range hours {
		if h.StaffID != staffID {
			continue
		}
		declared = true
		if h.Weekday != int(dayStart.Weekday()) {
			continue
		}
		windows = append(windows, window{
			Start: dayStart.Add(time.Duration(h.StartMinute) * time.Minute),
			End:   dayStart.Add(time.Duration(h.EndMinute) * time.Minute),
		})
	}
	if !declared {
		return []window{{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}}
	}
	return windows
}
