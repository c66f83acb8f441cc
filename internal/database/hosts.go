package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrHostNotFound is returned when a host id or name does not exist.
var ErrHostNotFound = errors.New("host not found")

func GetHostByID(id uint) (*Host, error) {
	var h Host
	if err := DB.First(&h, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHostNotFound
		}
		return nil, fmt.Errorf("get host %d: %w", id, err)
	}
	return &h, nil
}

func GetHostByName(name string) (*Host, error) {
	var h Host
	if err := DB.First(&h, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHostNotFound
		}
		return nil, fmt.Errorf("get host %q: %w", name, err)
	}
	return &h, nil
}

func ListHosts() ([]Host, error) {
	var hosts []Host
	if err := DB.Order("name").Find(&hosts).Error; err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	return hosts, nil
}

func CreateHost(h *Host) error {
	if err := DB.Create(h).Error; err != nil {
		return fmt.Errorf("create host: %w", err)
	}
	return nil
}

func SaveHost(h *Host) error {
	if err := DB.Save(h).Error; err != nil {
		return fmt.Errorf("save host: %w", err)
	}
	return nil
}

func DeleteHost(id uint) error {
	res := DB.Delete(&Host{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete host %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrHostNotFound
	}
	return nil
}
