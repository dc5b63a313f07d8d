package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/spot-rental/internal/model"
	"github.com/iliyamo/spot-rental/internal/repository"
)

func TestAuthorize(t *testing.T) {
	spot := &model.Spot{ID: 1, OwnerID: 7}
	review := &model.Review{ID: 2, UserID: 9}
	booking := &model.Booking{ID: 3, UserID: 11}

	tests := []struct {
		name     string
		identity uint64
		resource Owned
		wantErr  error
	}{
		{"spot owner", 7, spot, nil},
		{"spot stranger", 8, spot, repository.ErrForbidden},
		{"review author", 9, review, nil},
		{"review stranger", 7, review, repository.ErrForbidden},
		{"booker", 11, booking, nil},
		{"anonymous", 0, spot, repository.ErrForbidden},
		{"owner id", 5, OwnerID(5), nil},
		{"nil resource", 5, nil, repository.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.identity, tt.resource)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthorizeAny_BookerOrSpotOwner(t *testing.T) {
	booking := &model.Booking{UserID: 11}
	assert.NoError(t, AuthorizeAny(11, booking, OwnerID(7)))
	assert.NoError(t, AuthorizeAny(7, booking, OwnerID(7)))
	assert.ErrorIs(t, AuthorizeAny(8, booking, OwnerID(7)), repository.ErrForbidden)
}

func TestLoad_NotFoundBeforeForbidden(t *testing.T) {
	// a missing review reports not found for every caller
	_, err := Load(9, func() (*model.Review, error) { return nil, repository.ErrReviewNotFound })
	assert.ErrorIs(t, err, repository.ErrReviewNotFound)

	_, err = Load(1, func() (*model.Review, error) { return nil, repository.ErrReviewNotFound })
	assert.ErrorIs(t, err, repository.ErrReviewNotFound)

	_, err = Load(1, func() (*model.Review, error) { return &model.Review{UserID: 9}, nil })
	assert.ErrorIs(t, err, repository.ErrForbidden)

	got, err := Load(9, func() (*model.Review, error) { return &model.Review{ID: 99, UserID: 9}, nil })
	assert.NoError(t, err)
	assert.Equal(t, uint64(99), got.ID)

	boom := errors.New("db down")
	_, err = Load(9, func() (*model.Review, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}
