package repository

import (
	"context"

	"gorm.io/gorm"

	"care-hub/backend/internal/model"
)

// MemberRepository 成员数据访问接口
type MemberRepository interface {
	Create(ctx context.Context, member *model.Member) error
	GetByID(ctx context.Context, id string) (*model.Member, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Member, error)
	ListByCareSpace(ctx context.Context, careSpaceID string) ([]model.Member, error)
}

type memberRepo struct {
	db *gorm.DB
}

// NewMemberRepo 创建 MemberRepository 实例
func NewMemberRepo(db *gorm.DB) MemberRepository {
	return &memberRepo{db: db}
}

func (r *memberRepo) Create(ctx context.Context, member *model.Member) error {
	if member.MemberID == "" {
		member.MemberID = model.NewID()
	}
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *memberRepo) GetByID(ctx context.Context, id string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Where("member_id = ?", id).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var members []model.Member
	err := r.db.WithContext(ctx).
		Where("member_id IN ?", ids).
		Find(&members).Error
	return members, err
}

func (r *memberRepo) ListByCareSpace(ctx context.Context, careSpaceID string) ([]model.Member, error) {
	var members []model.Member
	err := r.db.WithContext(ctx).
		Where("care_space_id = ? AND is_active = ?", careSpaceID, true).
		Order("name ASC").
		Find(&members).Error
	return members, err
}
