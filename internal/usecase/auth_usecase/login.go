package auth

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"

	"github.com/labstack/gommon/log"
)

// handlerからusecaseに渡す入力
type LoginInput struct {
	Email    string
	Password string
	// 匿名カートのセッションキー（あればログイン時にマージする）
	SessionKey string
}

type JwtAccessToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// handlerがJSONにして返す
type LoginOutput struct {
	User  model.User     `json:"user"`
	Token JwtAccessToken `json:"token"`
}

// メールまたはパスワードが違う
var ErrInvalidCredentials = errors.New("invalid credentials")

// 停止済みユーザー
var ErrUserInactive = errors.New("user is inactive")

// JWTを発行する約束
type AccessTokenIssuer interface {
	Issue(userID int64, now time.Time) (token string, expiresAt time.Time, err error)
}

// ログイン成功時にセッションカートを会員へ移す約束
type CartMerger interface {
	MergeOnLogin(ctx context.Context, sessionKey string, userID int64) error
}

type LoginUsecase struct {
	userRepo   repository.UserRepository
	verifier   PasswordVerifier
	issuer     AccessTokenIssuer
	cartMerger CartMerger
	clock      Clock
}

// DI
func NewLoginUsecase(
	userRepo repository.UserRepository,
	verifier PasswordVerifier,
	issuer AccessTokenIssuer,
	cartMerger CartMerger,
	clock Clock,
) *LoginUsecase {
	return &LoginUsecase{
		userRepo:   userRepo,
		verifier:   verifier,
		issuer:     issuer,
		cartMerger: cartMerger,
		clock:      clock,
	}
}

// ログイン処理を実行する
func (u *LoginUsecase) Execute(ctx context.Context, in LoginInput) (LoginOutput, error) {
	var out LoginOutput

	//emailでユーザー取得
	user, err := u.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return out, ErrInvalidCredentials
		}
		return out, err
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return out, ErrUserInactive
	}

	//パスワード照合
	if ok := u.verifier.Verify(in.Password, user.PasswordHash); !ok {
		return out, ErrInvalidCredentials
	}

	//AccessToken発行
	now := u.clock.Now()
	accessToken, expiresAt, err := u.issuer.Issue(user.ID, now)
	if err != nil {
		return out, err
	}

	//匿名カートの引き継ぎ（repo側がマージ後に消すので一度きり）。
	//失敗してもログインは通す。セッションカートが残るだけで次回またマージされる。
	if in.SessionKey != "" {
		if err := u.cartMerger.MergeOnLogin(ctx, in.SessionKey, user.ID); err != nil {
			log.Warnf("merge session cart %s into user %d: %v", in.SessionKey, user.ID, err)
		}
	}

	out.User = *user
	out.User.PasswordHash = ""
	out.Token = JwtAccessToken{
		AccessToken: accessToken,
		ExpiresIn:   int(expiresAt.Sub(now).Seconds()),
	}
	return out, nil
}
