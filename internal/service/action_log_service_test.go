package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"moh-portal/internal/dto"
	"moh-portal/internal/model"
	pkgerrors "moh-portal/pkg/errors"
)

// ── Undo ──

func TestUndo_DeactivateRestoresUser(t *testing.T) {
	env := newTestEnv()
	_, admin, _, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Deactivate(ctx, callerOf(admin), target.ID); err != nil {
		t.Fatalf("Deactivate 不应失败: %v", err)
	}
	logID := env.logs.last().ID

	resp, err := env.svc.ActionLog.Undo(ctx, callerOf(admin), logID)
	if err != nil {
		t.Fatalf("Undo 不应失败: %v", err)
	}
	if resp.LogID != logID || resp.ActionType != model.ActionDeactivate {
		t.Errorf("响应不符: %+v", resp)
	}
	if env.users.get(target.ID).Status != model.StatusActive {
		t.Error("撤销后用户应恢复为 active")
	}

	entry, _ := env.logs.GetByID(ctx, logID)
	if !entry.Undone || entry.UndoneByID == nil || *entry.UndoneByID != admin.ID {
		t.Error("原记录应被标记为已撤销")
	}
	other := env.logs.last()
	if other.ActionType != model.ActionOther {
		t.Fatalf("应追加 other 记录，实际 %s", other.ActionType)
	}
	if meta := decodeState(other.Metadata); meta["undone_log_id"] != float64(logID) {
		t.Errorf("metadata 应引用原记录，实际 %v", meta)
	}
}

func TestUndo_Twice(t *testing.T) {
	env := newTestEnv()
	_, admin, _, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Deactivate(ctx, callerOf(admin), target.ID); err != nil {
		t.Fatalf("Deactivate 不应失败: %v", err)
	}
	logID := env.logs.last().ID
	if _, err := env.svc.ActionLog.Undo(ctx, callerOf(admin), logID); err != nil {
		t.Fatalf("第一次撤销不应失败: %v", err)
	}

	_, err := env.svc.ActionLog.Undo(ctx, callerOf(admin), logID)
	requireCode(t, err, 400, pkgerrors.CodeAlreadyUndone)
	if !errors.Is(err, ErrAlreadyUndone) {
		t.Errorf("期望 ErrAlreadyUndone，实际 %v", err)
	}
}

func TestUndo_RoleChange(t *testing.T) {
	env := newTestEnv()
	root, _, _, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.ChangeRole(ctx, callerOf(root), target.ID, model.RoleCC); err != nil {
		t.Fatalf("ChangeRole 不应失败: %v", err)
	}
	if _, err := env.svc.ActionLog.Undo(ctx, callerOf(root), env.logs.last().ID); err != nil {
		t.Fatalf("Undo 不应失败: %v", err)
	}
	if env.users.get(target.ID).Role != model.RoleUser {
		t.Errorf("角色应回到 user，实际 %s", env.users.get(target.ID).Role)
	}
}

func TestUndo_RoleChangeWithoutPreviousRole(t *testing.T) {
	env := newTestEnv()
	root, _, _, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleCC, model.StatusActive, model.CityCGBN)
	uid := root.ID
	_ = env.logs.Create(context.Background(), &model.ActionLog{
		UserID:        &uid,
		ActionType:    model.ActionRoleChange,
		TargetType:    targetTypeUser,
		TargetID:      target.ID,
		PreviousState: datatypes.JSON(`{}`),
	})

	_, err := env.svc.ActionLog.Undo(context.Background(), callerOf(root), env.logs.last().ID)
	if !errors.Is(err, ErrUndoNoPrevRole) {
		t.Fatalf("期望 ErrUndoNoPrevRole，实际 %v", err)
	}
	if env.users.get(target.ID).Role != model.RoleCC {
		t.Error("拒绝撤销时角色不应变化")
	}
}

func TestUndo_PasswordChangeRefused(t *testing.T) {
	env := newTestEnv()
	_, admin, _, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Update(ctx, callerOf(admin), &dto.UpdateUserRequest{
		ID:       target.ID,
		GameNick: strp("Other_Nick"),
		Password: strp("new-password"),
	}); err != nil {
		t.Fatalf("Update 不应失败: %v", err)
	}

	_, err := env.svc.ActionLog.Undo(ctx, callerOf(admin), env.logs.last().ID)
	requireCode(t, err, 400, pkgerrors.CodeNotUndoable)
	if env.users.get(target.ID).GameNick != "Other_Nick" {
		t.Error("拒绝撤销时昵称不应回退")
	}
}

func TestUndo_UpdateRestoresNick(t *testing.T) {
	env := newTestEnv()
	_, admin, _, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Update(ctx, callerOf(admin), &dto.UpdateUserRequest{ID: target.ID, GameNick: strp("Other_Nick")}); err != nil {
		t.Fatalf("Update 不应失败: %v", err)
	}
	if _, err := env.svc.ActionLog.Undo(ctx, callerOf(admin), env.logs.last().ID); err != nil {
		t.Fatalf("Undo 不应失败: %v", err)
	}
	if env.users.get(target.ID).GameNick != "Some_User" {
		t.Errorf("昵称应回到 Some_User，实际 %s", env.users.get(target.ID).GameNick)
	}
}

func TestUndo_CreateNotUndoable(t *testing.T) {
	env := newTestEnv()
	_, admin, _, _ := seedStaff(env)
	ctx := context.Background()

	if _, err := env.svc.User.Create(ctx, callerOf(admin), createReq(model.RoleUser, model.CityCGBN)); err != nil {
		t.Fatalf("Create 不应失败: %v", err)
	}
	_, err := env.svc.ActionLog.Undo(ctx, callerOf(admin), env.logs.last().ID)
	if !errors.Is(err, ErrNotUndoable) {
		t.Fatalf("期望 ErrNotUndoable，实际 %v", err)
	}
}

func TestUndo_ForeignLog(t *testing.T) {
	env := newTestEnv()
	root, admin, ldN, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Deactivate(ctx, callerOf(admin), target.ID); err != nil {
		t.Fatalf("Deactivate 不应失败: %v", err)
	}
	logID := env.logs.last().ID

	if _, err := env.svc.ActionLog.Undo(ctx, callerOf(ldN), logID); !errors.Is(err, ErrUndoForeign) {
		t.Fatalf("ld 撤销他人记录应被拒绝，实际 %v", err)
	}
	if _, err := env.svc.ActionLog.Undo(ctx, callerOf(root), logID); err != nil {
		t.Fatalf("root 可撤销任意记录: %v", err)
	}
}

func TestUndo_LogNotFound(t *testing.T) {
	env := newTestEnv()
	root, _, _, _ := seedStaff(env)

	_, err := env.svc.ActionLog.Undo(context.Background(), callerOf(root), 999)
	if !errors.Is(err, ErrLogNotFound) {
		t.Fatalf("期望 ErrLogNotFound，实际 %v", err)
	}
}

func TestUndo_PlainUserForbidden(t *testing.T) {
	env := newTestEnv()
	u := env.seedUser("plain", "Plain_User", model.RoleUser, model.StatusActive, model.CityCGBN)

	_, err := env.svc.ActionLog.Undo(context.Background(), callerOf(u), 1)
	requireCode(t, err, 403, pkgerrors.CodeForbidden)
}

func TestUndo_MarkFailureKeepsReversal(t *testing.T) {
	env := newTestEnv()
	_, admin, _, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Deactivate(ctx, callerOf(admin), target.ID); err != nil {
		t.Fatalf("Deactivate 不应失败: %v", err)
	}
	env.logs.markErr = errors.New("timeout")

	if _, err := env.svc.ActionLog.Undo(ctx, callerOf(admin), env.logs.last().ID); err != nil {
		t.Fatalf("标记失败不应使撤销失败: %v", err)
	}
	if env.users.get(target.ID).Status != model.StatusActive {
		t.Error("反向修改应已生效")
	}
}

func TestUndo_RoleChangeRecheckedAgainstCurrentRole(t *testing.T) {
	env := newTestEnv()
	root, admin, _, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleCC, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.ChangeRole(ctx, callerOf(admin), target.ID, model.RoleLeader); err != nil {
		t.Fatalf("ChangeRole 不应失败: %v", err)
	}
	logID := env.logs.last().ID
	if _, err := env.svc.User.ChangeRole(ctx, callerOf(root), target.ID, model.RoleAdmin); err != nil {
		t.Fatalf("root 提升为 admin 不应失败: %v", err)
	}

	// admin 不能直接降级其他 admin，撤销也不行
	_, err := env.svc.ActionLog.Undo(ctx, callerOf(admin), logID)
	requireCode(t, err, 403, pkgerrors.CodeForbidden)
	if env.users.get(target.ID).Role != model.RoleAdmin {
		t.Errorf("拒绝撤销时角色应保持 admin，实际 %s", env.users.get(target.ID).Role)
	}
	if entry, _ := env.logs.GetByID(ctx, logID); entry.Undone {
		t.Error("拒绝撤销时记录不应被标记")
	}
}

func TestUndo_LeaderCannotRestoreUserMovedAway(t *testing.T) {
	env := newTestEnv()
	root, _, ldN, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Deactivate(ctx, callerOf(ldN), target.ID); err != nil {
		t.Fatalf("Deactivate 不应失败: %v", err)
	}
	logID := env.logs.last().ID
	if _, err := env.svc.User.ChangeCity(ctx, callerOf(root), target.ID, model.CityOKBM); err != nil {
		t.Fatalf("ChangeCity 不应失败: %v", err)
	}

	_, err := env.svc.ActionLog.Undo(ctx, callerOf(ldN), logID)
	requireCode(t, err, 403, pkgerrors.CodeForbidden)
	if u := env.users.get(target.ID); u.Status != model.StatusInactive || u.City != model.CityOKBM {
		t.Errorf("拒绝撤销时用户不应变化: status=%s city=%s", u.Status, u.City)
	}
}

func TestUndo_LeaderRestoresOwnCityUser(t *testing.T) {
	env := newTestEnv()
	_, _, ldN, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Deactivate(ctx, callerOf(ldN), target.ID); err != nil {
		t.Fatalf("Deactivate 不应失败: %v", err)
	}
	if _, err := env.svc.ActionLog.Undo(ctx, callerOf(ldN), env.logs.last().ID); err != nil {
		t.Fatalf("本城市用户应可撤销: %v", err)
	}
	if env.users.get(target.ID).Status != model.StatusActive {
		t.Error("撤销后用户应恢复为 active")
	}
}

func TestUndo_MalformedTargetID(t *testing.T) {
	env := newTestEnv()
	root, _, _, _ := seedStaff(env)
	uid := root.ID
	_ = env.logs.Create(context.Background(), &model.ActionLog{
		UserID:        &uid,
		ActionType:    model.ActionDeactivate,
		TargetType:    targetTypeUser,
		TargetID:      "not-a-uuid",
		PreviousState: datatypes.JSON(`{}`),
	})

	_, err := env.svc.ActionLog.Undo(context.Background(), callerOf(root), env.logs.last().ID)
	if !errors.Is(err, ErrUndoTargetMissing) {
		t.Fatalf("期望 ErrUndoTargetMissing，实际 %v", err)
	}
}

// ── List / Export ──

func TestActionLogList_LeaderSeesOwnOnly(t *testing.T) {
	env := newTestEnv()
	_, admin, ldN, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	other := env.seedUser("other", "Other_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Deactivate(ctx, callerOf(admin), target.ID); err != nil {
		t.Fatalf("Deactivate 不应失败: %v", err)
	}
	if _, err := env.svc.User.Deactivate(ctx, callerOf(ldN), other.ID); err != nil {
		t.Fatalf("Deactivate 不应失败: %v", err)
	}

	logs, total, err := env.svc.ActionLog.List(ctx, callerOf(ldN), &dto.ActionLogListRequest{UserID: admin.ID})
	if err != nil {
		t.Fatalf("List 不应失败: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("ld 只能看到自己的 1 条，实际 %d", total)
	}
	if *logs[0].UserID != ldN.ID {
		t.Error("ld 不应看到他人记录")
	}

	_, total, err = env.svc.ActionLog.List(ctx, callerOf(admin), &dto.ActionLogListRequest{ActionType: model.ActionDeactivate})
	if err != nil {
		t.Fatalf("List 不应失败: %v", err)
	}
	if total != 2 {
		t.Errorf("admin 应看到 2 条 deactivate，实际 %d", total)
	}
}

func TestActionLogList_BadDate(t *testing.T) {
	env := newTestEnv()
	_, admin, _, _ := seedStaff(env)

	_, _, err := env.svc.ActionLog.List(context.Background(), callerOf(admin), &dto.ActionLogListRequest{From: "16.10.2026"})
	requireCode(t, err, 400, pkgerrors.CodeValidation)
}

func TestActionLogExport_Workbook(t *testing.T) {
	env := newTestEnv()
	_, admin, _, _ := seedStaff(env)
	target := env.seedUser("target", "Some_User", model.RoleUser, model.StatusActive, model.CityCGBN)
	ctx := context.Background()

	if _, err := env.svc.User.Deactivate(ctx, callerOf(admin), target.ID); err != nil {
		t.Fatalf("Deactivate 不应失败: %v", err)
	}

	buf, filename, err := env.svc.ActionLog.Export(ctx, callerOf(admin), &dto.ActionLogListRequest{})
	if err != nil {
		t.Fatalf("Export 不应失败: %v", err)
	}
	if !strings.HasPrefix(filename, "action_logs_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("文件名不符: %s", filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("导出内容应为合法 xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Журнал действий")
	if err != nil {
		t.Fatalf("读取工作表失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("应有表头 + 1 行数据，实际 %d 行", len(rows))
	}
	if rows[1][3] != model.ActionDeactivate {
		t.Errorf("类型列应为 deactivate，实际 %s", rows[1][3])
	}
}
