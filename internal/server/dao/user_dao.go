package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tradepilot/internal/common"
	"tradepilot/internal/server/model"
)

type UserDAO interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type userDAO struct {
	db *gorm.DB
}

func NewUserDAO(db *gorm.DB) UserDAO {
	return &userDAO{db: db}
}

func (d *userDAO) Create(ctx context.Context, user *model.User) error {
	if err := d.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.NewErrNo(common.UserExists)
		}
		return err
	}
	return nil
}

func (d *userDAO) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := d.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.UserNotExists)
		}
		return nil, err
	}
	return &user, nil
}

func (d *userDAO) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := d.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewErrNo(common.UserNotExists)
		}
		return nil, err
	}
	return &user, nil
}
