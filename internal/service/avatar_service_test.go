package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"moh-portal/internal/model"
	pkgerrors "moh-portal/pkg/errors"
	"moh-portal/pkg/imagehost"
)

// pngBytes 仅含 PNG 签名与 IHDR 头，足够内容嗅探识别
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

func TestAvatar_UploadPendingForRegularUser(t *testing.T) {
	env := newTestEnv()
	u := env.seedUser("plain", "Plain_User", model.RoleUser, model.StatusActive, model.CityCGBN)

	resp, err := env.svc.Avatar.Upload(context.Background(), callerOf(u), bytes.NewReader(pngBytes), "me.png")
	if err != nil {
		t.Fatalf("Upload 不应失败: %v", err)
	}
	if resp.ModerationStatus != model.AvatarPending {
		t.Errorf("普通用户上传应待审核，实际 %s", resp.ModerationStatus)
	}
	stored := env.users.get(u.ID)
	if stored.AvatarURL == nil || *stored.AvatarURL != resp.AvatarURL {
		t.Error("应保存头像地址")
	}
	if _, ok := env.limits.rows[u.ID]; !ok {
		t.Error("应记录上传时间")
	}
}

func TestAvatar_UploadApprovedForAdmin(t *testing.T) {
	env := newTestEnv()
	_, admin, _, _ := seedStaff(env)

	resp, err := env.svc.Avatar.Upload(context.Background(), callerOf(admin), bytes.NewReader(pngBytes), "me.png")
	if err != nil {
		t.Fatalf("Upload 不应失败: %v", err)
	}
	if resp.ModerationStatus != model.AvatarApproved {
		t.Errorf("管理员上传应直接通过，实际 %s", resp.ModerationStatus)
	}
}

func TestAvatar_RejectsNonImage(t *testing.T) {
	env := newTestEnv()
	u := env.seedUser("plain", "Plain_User", model.RoleUser, model.StatusActive, model.CityCGBN)

	_, err := env.svc.Avatar.Upload(context.Background(), callerOf(u), strings.NewReader("<html>not an image</html>"), "me.png")
	if !errors.Is(err, ErrAvatarType) {
		t.Fatalf("期望 ErrAvatarType，实际 %v", err)
	}
	if env.images.uploads != 0 {
		t.Error("类型不符时不应上传")
	}
}

func TestAvatar_RejectsOversizeAndEmpty(t *testing.T) {
	env := newTestEnv()
	u := env.seedUser("plain", "Plain_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	big := append(append([]byte{}, pngBytes...), make([]byte, MaxAvatarBytes)...)
	if _, err := env.svc.Avatar.Upload(ctx, callerOf(u), bytes.NewReader(big), "big.png"); !errors.Is(err, ErrAvatarTooLarge) {
		t.Errorf("期望 ErrAvatarTooLarge，实际 %v", err)
	}
	if _, err := env.svc.Avatar.Upload(ctx, callerOf(u), bytes.NewReader(nil), "empty.png"); !errors.Is(err, ErrAvatarEmpty) {
		t.Errorf("期望 ErrAvatarEmpty，实际 %v", err)
	}
}

func TestAvatar_UploadInterval(t *testing.T) {
	env := newTestEnv()
	u := env.seedUser("plain", "Plain_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.Avatar.Upload(ctx, callerOf(u), bytes.NewReader(pngBytes), "a.png"); err != nil {
		t.Fatalf("首次上传不应失败: %v", err)
	}
	_, err := env.svc.Avatar.Upload(ctx, callerOf(u), bytes.NewReader(pngBytes), "b.png")
	requireCode(t, err, 429, pkgerrors.CodeRateLimited)

	env.limits.rows[u.ID] = time.Now().Add(-6 * time.Minute)
	if _, err := env.svc.Avatar.Upload(ctx, callerOf(u), bytes.NewReader(pngBytes), "c.png"); err != nil {
		t.Fatalf("间隔过后应允许上传: %v", err)
	}
}

func TestAvatar_LimitStoreDown(t *testing.T) {
	env := newTestEnv()
	u := env.seedUser("plain", "Plain_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	env.limits.getErr = errors.New("db down")
	env.cfg.RateLimit.FailOpen = false

	_, err := env.svc.Avatar.Upload(context.Background(), callerOf(u), bytes.NewReader(pngBytes), "a.png")
	if !errors.Is(err, ErrAvatarLimitBackend) {
		t.Fatalf("期望 ErrAvatarLimitBackend，实际 %v", err)
	}
}

func TestAvatar_HostErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"未配置", imagehost.ErrNotConfigured, ErrImageHostMissing},
		{"上游失败", errors.New("HTTP 500"), ErrImageHostFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			u := env.seedUser("plain", "Plain_User", model.RoleUser, model.StatusActive, model.CityCGBN)
			env.images.uploadErr = tc.err

			_, err := env.svc.Avatar.Upload(context.Background(), callerOf(u), bytes.NewReader(pngBytes), "a.png")
			if !errors.Is(err, tc.want) {
				t.Fatalf("期望 %v，实际 %v", tc.want, err)
			}
		})
	}
}

func TestAvatar_DeleteOwn(t *testing.T) {
	env := newTestEnv()
	u := env.seedUser("plain", "Plain_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if err := env.svc.Avatar.Delete(ctx, callerOf(u)); !errors.Is(err, ErrAvatarNotFound) {
		t.Fatalf("无头像时期望 ErrAvatarNotFound，实际 %v", err)
	}
	if _, err := env.svc.Avatar.Upload(ctx, callerOf(u), bytes.NewReader(pngBytes), "a.png"); err != nil {
		t.Fatalf("Upload 不应失败: %v", err)
	}
	if err := env.svc.Avatar.Delete(ctx, callerOf(u)); err != nil {
		t.Fatalf("Delete 不应失败: %v", err)
	}
	if env.users.get(u.ID).AvatarURL != nil {
		t.Error("头像地址应被清空")
	}
	if len(env.images.destroyed) != 1 || env.images.destroyed[0] != "avatars/"+u.ID {
		t.Errorf("应删除图床资源，实际 %v", env.images.destroyed)
	}
}

func TestAvatar_ResetAndModerate(t *testing.T) {
	env := newTestEnv()
	_, admin, _, ldP := seedStaff(env)
	u := env.seedUser("plain", "Plain_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.Avatar.Upload(ctx, callerOf(u), bytes.NewReader(pngBytes), "a.png"); err != nil {
		t.Fatalf("Upload 不应失败: %v", err)
	}

	if _, err := env.svc.Avatar.Moderate(ctx, callerOf(admin), u.ID, "maybe"); !errors.Is(err, ErrAvatarModeration) {
		t.Errorf("期望 ErrAvatarModeration，实际 %v", err)
	}
	_, err := env.svc.Avatar.Moderate(ctx, callerOf(ldP), u.ID, model.AvatarApproved)
	requireCode(t, err, 403, pkgerrors.CodeForbidden)

	resp, err := env.svc.Avatar.Moderate(ctx, callerOf(admin), u.ID, model.AvatarRejected)
	if err != nil {
		t.Fatalf("Moderate 不应失败: %v", err)
	}
	if resp.ModerationStatus != model.AvatarRejected {
		t.Errorf("审核状态应为 rejected，实际 %s", resp.ModerationStatus)
	}

	if err := env.svc.Avatar.Reset(ctx, callerOf(admin), u.ID); err != nil {
		t.Fatalf("Reset 不应失败: %v", err)
	}
	if env.users.get(u.ID).AvatarURL != nil {
		t.Error("重置后头像地址应被清空")
	}
}
