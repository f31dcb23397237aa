package service

import (
	"context"
	"fmt"

	"SafeWalk/internal/model/dto"
	"SafeWalk/internal/repository"
)

// ContactService 联系人由账号侧维护，这里只提供行程创建时的选择列表
type ContactService struct {
	store repository.ContactStore
}

func NewContactService(d Deps) *ContactService {
	return &ContactService{store: d.Store}
}

// List 用户的全部联系人，默认通知的排在前面
func (s *ContactService) List(ctx context.Context, userID int64) ([]dto.ContactItem, error) {
	contacts, err := s.store.ListContacts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	items := contactItems(contacts)
	defaults := make([]dto.ContactItem, 0, len(items))
	others := make([]dto.ContactItem, 0, len(items))
	for _, it := range items {
		if it.NotifyByDefault {
			defaults = append(defaults, it)
		} else {
			others = append(others, it)
		}
	}
	return append(defaults, others...), nil
}
