package advertisement

import "time"

type User struct {
	ID               int64     `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	Login            string    `json:"login" gorm:"column:login;type:varchar(100);uniqueIndex;not null"`
	Password         string    `json:"-" gorm:"column:password;type:varchar(255);not null"`
	Email            string    `json:"email" gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	IsVerifiedSeller bool      `json:"is_verified_seller" gorm:"column:is_verified_seller;not null;default:false"`
	CreatedAt        time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

type Advertisement struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	SellerID    int64     `json:"seller_id" gorm:"column:seller_id;not null;index:idx_advertisements_seller_id_category,priority:1"`
	Name        string    `json:"name" gorm:"column:name;type:varchar(100);not null"`
	Description string    `json:"description" gorm:"column:description;type:text;not null"`
	Category    int       `json:"category" gorm:"column:category;not null;index:idx_advertisements_seller_id_category,priority:2"`
	ImagesQty   int       `json:"images_qty" gorm:"column:images_qty;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`

	Seller *User `json:"-" gorm:"foreignKey:SellerID;constraint:OnDelete:CASCADE"`
}

func (Advertisement) TableName() string {
	return "advertisements"
}

// Snapshot is the advertisement joined with its seller's verification flag,
// the shape scoring consumes and the shape cached under advertisement:{id}.
type Snapshot struct {
	ItemID           int64  `json:"item_id" gorm:"column:item_id"`
	SellerID         int64  `json:"seller_id" gorm:"column:seller_id"`
	Name             string `json:"name" gorm:"column:name"`
	Description      string `json:"description" gorm:"column:description"`
	Category         int    `json:"category" gorm:"column:category"`
	ImagesQty        int    `json:"images_qty" gorm:"column:images_qty"`
	IsVerifiedSeller bool   `json:"is_verified_seller" gorm:"column:is_verified_seller"`
}
