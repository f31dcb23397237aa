package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"SafeWalk/internal/service"
	"SafeWalk/pkg/response"
)

// ListContacts 创建行程时可选的联系人，默认通知的排在前面
// GET /v1/contacts
func ListContacts(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	contacts, err := service.Contact().List(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, contacts)
}
