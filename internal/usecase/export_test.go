package usecase

import "time"

// テストで時刻を固定する
func (u *CheckoutUsecase) SetNow(now func() time.Time) {
	u.now = now
}
