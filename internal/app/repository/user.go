package repository

import (
	"errors"

	"filingdesk/internal/app/ds"

	"gorm.io/gorm"
)

// Methods for users (ORM)

func (r *Repository) GetUserByID(id uint) (*ds.User, error) {
	var user ds.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByLogin(login string) (*ds.User, error) {
	var user ds.User
	err := r.db.Where("login = ?", login).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) UserExistsByLogin(login string) (bool, error) {
	_, err := r.GetUserByLogin(login)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) CreateUser(u ds.User) (*ds.User, error) {
	exists, err := r.UserExistsByLogin(u.Login)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	err = r.db.Create(&u).Error
	if err != nil {
		return nil, err
	}

	return &u, nil
}
