package model

// Organization 組織テーブル — organizations
// 組織アカウントは運用側が手動で発行する。パスワードは平文保存・
// 完全一致比較であり、ハッシュ化への移行は未着手（既知の弱点）
type Organization struct {
	OrgCode       string `gorm:"type:varchar(50);primaryKey"                   json:"org_code"`
	OrgName       string `gorm:"type:varchar(255);not null"                    json:"org_name"`
	Password      string `gorm:"type:varchar(255);not null"                    json:"-"`
	Timezone      string `gorm:"type:varchar(64);not null;default:'Asia/Tokyo'" json:"timezone"`
	FullDashboard bool   `gorm:"not null;default:false"                        json:"full_dashboard"`
	BaseModel
}

// TableName テーブル名を指定する
func (Organization) TableName() string { return "organizations" }
