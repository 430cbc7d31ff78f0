package ds

type User struct {
	ID       uint   `gorm:"primaryKey"`
	Login    string `gorm:"type:varchar(50);unique;not null"`
	Password string `gorm:"type:varchar(255);not null"`
	Role     int    `gorm:"type:int;default:0;not null"`
	Email    string `gorm:"type:varchar(100)"`
	Phone    string `gorm:"type:varchar(20)"`
	FullName string `gorm:"type:varchar(100)"`
}
