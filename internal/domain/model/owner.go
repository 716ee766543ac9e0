package model

// CartOwner はカートの持ち主。
// 会員（UserID）か匿名セッション（SessionKey）のどちらか一方だけを持つ。
// 「両方入っている / どちらも空」は不正な状態として扱う。
type CartOwner struct {
	UserID     int64
	SessionKey string
}

// 会員のowner
func OwnerUser(userID int64) CartOwner {
	return CartOwner{UserID: userID}
}

// 匿名セッションのowner
func OwnerSession(sessionKey string) CartOwner {
	return CartOwner{SessionKey: sessionKey}
}

func (o CartOwner) IsUser() bool {
	return o.UserID > 0
}

// ちょうど一方だけが入っているか
func (o CartOwner) Valid() bool {
	hasUser := o.UserID > 0
	hasSession := o.SessionKey != ""
	return hasUser != hasSession
}
