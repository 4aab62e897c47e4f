package household

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/repository"
	"github.com/safenestapp/safenest/internal/store"
	syncengine "github.com/safenestapp/safenest/internal/sync"
	"github.com/safenestapp/safenest/pkg/auth"
)

// Validation failures are user decision points: they are returned to the
// caller with a specific reason and never retried automatically.
var (
	ErrInvalidCode       = errors.New("enter a valid code (min 3 characters)")
	ErrHouseholdNotFound = errors.New("household code not found, verify the code with the senior")
	ErrSeniorExists      = errors.New("a senior is already registered with this code")
	ErrAlreadyLinked     = errors.New("already linked to a different household, sign out first")
	ErrPhoneRegistered   = errors.New("phone number is already registered")
)

// NormalizePhone strips everything but digits
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// validPhone is the 10-digit check applied before index writes
func validPhone(normalized string) bool { return len(normalized) == 10 }

// Service implements household membership: joining with a code, the
// one-senior-per-household rule, the phone and caregiver secondary indexes,
// and signed invite tokens. Validation reads go straight to the store (a
// join decision needs the backend anyway); all writes route through the sync
// engine like every other component.
type Service struct {
	rs      store.RemoteStore
	engine  *syncengine.Engine
	session *repository.SessionRepository
	invites *auth.InviteManager
}

// NewService wires the membership service; invites may be nil when invite
// tokens are not configured.
func NewService(rs store.RemoteStore, engine *syncengine.Engine, session *repository.SessionRepository, invites *auth.InviteManager) *Service {
	return &Service{rs: rs, engine: engine, session: session, invites: invites}
}

// CleanCode canonicalizes a household code
func CleanCode(code string) (string, error) {
	clean := strings.ToUpper(strings.TrimSpace(code))
	if len(clean) < 3 {
		return "", ErrInvalidCode
	}
	return clean, nil
}

// ValidateCode reports whether a household exists (its meta record is the
// validity marker)
func (s *Service) ValidateCode(ctx context.Context, code string) (bool, error) {
	clean, err := CleanCode(code)
	if err != nil {
		return false, err
	}
	var meta model.HouseholdMeta
	found, err := s.rs.GetOnce(ctx, store.MetaPath(clean), &meta)
	if err != nil {
		return false, fmt.Errorf("validate household: %w", err)
	}
	return found, nil
}

// JoinAsSenior binds the senior to a household for their lifetime. A senior
// belongs to exactly one household; changing requires an explicit sign-out.
// Creating the meta record is what makes the code joinable for caregivers.
func (s *Service) JoinAsSenior(ctx context.Context, code string, profile model.UserProfile) error {
	clean, err := CleanCode(code)
	if err != nil {
		return err
	}

	if s.session != nil {
		existing, err := s.session.SeniorHousehold()
		if err != nil {
			return err
		}
		if existing != "" && existing != clean {
			return ErrAlreadyLinked
		}
	}

	members, err := s.members(ctx, clean)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.Role != model.RoleSenior {
			continue
		}
		samePerson := (profile.ID != "" && m.ID == profile.ID) ||
			(profile.Phone != "" && NormalizePhone(m.Phone) == NormalizePhone(profile.Phone))
		if !samePerson {
			return fmt.Errorf("%w: %s", ErrSeniorExists, m.Name)
		}
	}

	meta := model.HouseholdMeta{
		Schema:    model.SchemaVersion,
		CreatedBy: profile.Name,
		Role:      model.RoleSenior,
		UpdatedAt: time.Now(),
	}
	if err := s.engine.Write(ctx, store.MetaPath(clean), meta); err != nil {
		return err
	}

	if phone := NormalizePhone(profile.Phone); validPhone(phone) {
		if err := s.engine.Write(ctx, store.PhoneIndexPath(phone), clean); err != nil {
			log.Printf("[Household] Failed to register phone index: %v", err)
		}
	}

	if err := s.registerMember(ctx, clean, profile, model.RoleSenior); err != nil {
		return err
	}
	if s.session != nil {
		if err := s.session.SaveSeniorHousehold(clean); err != nil {
			return err
		}
	}
	log.Printf("[Household] Senior joined household %s", clean)
	return nil
}

// JoinAsCaregiver links one more household to a caregiver device. The
// household must already exist (created by its senior); the caregiver index
// is maintained alongside so the set survives sign-out.
func (s *Service) JoinAsCaregiver(ctx context.Context, code string, profile model.UserProfile, coord *Coordinator) error {
	clean, err := CleanCode(code)
	if err != nil {
		return err
	}

	found, err := s.ValidateCode(ctx, clean)
	if err != nil {
		return err
	}
	if !found {
		return ErrHouseholdNotFound
	}

	if err := s.registerMember(ctx, clean, profile, model.RoleCaregiver); err != nil {
		return err
	}

	if phone := NormalizePhone(profile.Phone); validPhone(phone) {
		if err := s.engine.Write(ctx, store.CaregiverLinkPath(phone, clean), true); err != nil {
			log.Printf("[Household] Failed to update caregiver index: %v", err)
		}
	}

	if coord != nil {
		if err := coord.AddHousehold(ctx, clean); err != nil {
			return err
		}
	}
	log.Printf("[Household] Caregiver joined household %s", clean)
	return nil
}

// LoadCaregiverHouseholds restores the household set linked to a caregiver
// phone from the remote index (survives local sign-out).
func (s *Service) LoadCaregiverHouseholds(ctx context.Context, phone string) ([]string, error) {
	normalized := NormalizePhone(phone)
	if !validPhone(normalized) {
		return nil, nil
	}
	items, err := s.rs.List(ctx, store.CaregiverIndexPath(normalized))
	if err != nil {
		return nil, fmt.Errorf("load caregiver households: %w", err)
	}
	codes := make([]string, 0, len(items))
	for code := range items {
		codes = append(codes, code)
	}
	return codes, nil
}

// FindExistingMember looks a returning user up in a household, by phone, or
// when phone is empty returns the household's senior (auto-login).
func (s *Service) FindExistingMember(ctx context.Context, code, phone string) (*model.UserProfile, error) {
	clean, err := CleanCode(code)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, clean)
	if err != nil {
		return nil, err
	}

	normalized := NormalizePhone(phone)
	for _, m := range members {
		match := false
		if normalized == "" {
			match = m.Role == model.RoleSenior
		} else {
			match = NormalizePhone(m.Phone) == normalized
		}
		if match {
			return &model.UserProfile{
				ID:     m.ID,
				Name:   m.Name,
				Role:   m.Role,
				Avatar: m.Avatar,
				Phone:  m.Phone,
			}, nil
		}
	}
	return nil, nil
}

// IsPhoneRegistered checks the phone index and household membership before a
// new senior registration claims a number.
func (s *Service) IsPhoneRegistered(ctx context.Context, phone string) (bool, error) {
	normalized := NormalizePhone(phone)
	if !validPhone(normalized) {
		return false, nil
	}
	var code string
	found, err := s.rs.GetOnce(ctx, store.PhoneIndexPath(normalized), &code)
	if err != nil {
		return false, fmt.Errorf("check phone index: %w", err)
	}
	return found, nil
}

// CreateInvite issues a signed share token for a household code
func (s *Service) CreateInvite(code string) (string, error) {
	if s.invites == nil {
		return "", errors.New("invite tokens not configured")
	}
	clean, err := CleanCode(code)
	if err != nil {
		return "", err
	}
	return s.invites.Generate(clean)
}

// AcceptInvite resolves a signed share token back to its household code
func (s *Service) AcceptInvite(token string) (string, error) {
	if s.invites == nil {
		return "", errors.New("invite tokens not configured")
	}
	claims, err := s.invites.Validate(token)
	if err != nil {
		return "", fmt.Errorf("invalid invite: %w", err)
	}
	return claims.HouseholdID, nil
}

func (s *Service) registerMember(ctx context.Context, code string, profile model.UserProfile, role model.UserRole) error {
	member := model.HouseholdMember{
		ID:       profile.ID,
		Name:     profile.Name,
		Role:     role,
		Avatar:   profile.Avatar,
		Phone:    profile.Phone,
		JoinedAt: time.Now().Format(time.RFC3339),
	}
	return s.engine.Write(ctx, store.MemberPath(code, profile.ID), member)
}

func (s *Service) members(ctx context.Context, code string) ([]model.HouseholdMember, error) {
	items, err := s.rs.List(ctx, store.MembersPath(code))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	members := make([]model.HouseholdMember, 0, len(items))
	for _, snap := range items {
		var m model.HouseholdMember
		if err := snap.Decode(&m); err != nil {
			continue
		}
		members = append(members, m)
	}
	return members, nil
}
