package service

import (
	"context"
	"strings"

	"myblog/internal/models"
	"myblog/internal/repository"
	"myblog/internal/validation"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	users    repository.UserRepository
	images   *ImageService
	hashCost int
}

type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password2"`
}

func (in RegisterInput) Validate() error {
	return ozzo.ValidateStruct(&in,
		ozzo.Field(&in.Username, ozzo.Required, validation.Username),
		ozzo.Field(&in.Email, ozzo.Required, validation.Email),
		ozzo.Field(&in.Password, ozzo.Required, validation.Password),
		ozzo.Field(&in.PasswordConfirm, ozzo.Required, ozzo.By(func(value interface{}) error {
			if s, _ := value.(string); s != in.Password {
				return ozzo.NewError("validation_password_mismatch", "passwords do not match")
			}
			return nil
		})),
	)
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpdateProfileInput struct {
	UserID   uint              `json:"-"`
	TargetID uint              `json:"-"`
	Phone    string            `json:"phone"`
	Bio      string            `json:"bio"`
	Avatar   *UploadImageInput `json:"-"`
}

func (in UpdateProfileInput) Validate() error {
	return ozzo.ValidateStruct(&in,
		ozzo.Field(&in.Phone, validation.Phone),
		ozzo.Field(&in.Bio, ozzo.RuneLength(0, 500)),
	)
}

type DeleteAccountInput struct {
	UserID   uint
	TargetID uint
}

func NewUserService(users repository.UserRepository, images *ImageService) *UserService {
	return &UserService{users: users, images: images, hashCost: bcrypt.DefaultCost}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) IsAdmin(ctx context.Context, id uint) (bool, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.Validate(); err != nil {
		return nil, models.NewValidationError(validation.Message(err))
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if exists {
		return nil, models.NewValidationError("User already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Username: in.Username, Email: in.Email, Password: string(hashed)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

// Authenticate checks credentials. Unknown users and wrong passwords give
// the same error.
func (s *UserService) Authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Invalid username or password")
	if in.Username == "" || in.Password == "" {
		return nil, invalid
	}
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, invalid
	}
	return user, nil
}

// UpdateProfile edits the caller's own phone, bio and avatar.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Login required")
	}
	if in.UserID != in.TargetID {
		return nil, models.NewForbiddenError("You are not allowed to modify this user")
	}
	in.Phone = strings.TrimSpace(in.Phone)
	if err := in.Validate(); err != nil {
		return nil, models.NewValidationError(validation.Message(err))
	}

	user, err := s.users.GetByID(ctx, in.TargetID)
	if err != nil {
		return nil, err
	}

	oldAvatar := user.Avatar
	if in.Avatar != nil {
		rel, err := s.images.Store(ImageKindProfile, *in.Avatar)
		if err != nil {
			return nil, err
		}
		user.Avatar = rel
	}
	user.Phone = in.Phone
	user.Bio = in.Bio

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if user.Avatar != oldAvatar {
			s.images.Remove(user.Avatar)
		}
		return nil, models.NewInternalError(err)
	}
	if user.Avatar != oldAvatar {
		s.images.Remove(oldAvatar)
	}
	return user, nil
}

// DeleteAccount removes the caller's own account with everything it wrote.
func (s *UserService) DeleteAccount(ctx context.Context, in DeleteAccountInput) error {
	if in.UserID == 0 {
		return models.NewUnauthorizedError("Login required")
	}
	if in.UserID != in.TargetID {
		return models.NewForbiddenError("You are not allowed to delete this user")
	}
	user, err := s.users.GetByID(ctx, in.TargetID)
	if err != nil {
		return err
	}
	avatars, err := s.users.Delete(ctx, user.ID)
	if err != nil {
		return appError(err)
	}
	s.images.Remove(append(avatars, user.Avatar)...)
	return nil
}

// SetAdmin grants or revokes admin rights by username.
func (s *UserService) SetAdmin(ctx context.Context, username string, admin bool) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetAdmin(ctx, user.ID, admin); err != nil {
		return nil, appError(err)
	}
	user.IsAdmin = admin
	return user, nil
}
