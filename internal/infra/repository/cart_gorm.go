package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ownerで絞り込むWHEREを作る
func ownerWhere(tx *gorm.DB, owner model.CartOwner) *gorm.DB {
	if owner.IsUser() {
		return tx.Where("user_id = ?", owner.UserID)
	}
	return tx.Where("session_key = ?", owner.SessionKey)
}

// ownerのカート明細を一覧取得
func (r *CartGormRepository) ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error) {
	var items []model.CartItem

	tx := ownerWhere(r.db.WithContext(ctx), owner)
	if err := tx.Order("id asc").Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}
	return items, nil
}

// 同一商品は数量加算。
// 行ロックで読む→無ければINSERT。同時INSERTでunique違反になったら
// UPDATEとしてやり直す（lost update防止はuniqueと行ロックの両建て）。
func (r *CartGormRepository) UpsertByOwnerAndProduct(ctx context.Context, owner model.CartOwner, productID int64, addQty int64) (model.CartItem, error) {
	if addQty <= 0 {
		return model.CartItem{}, errors.New("invalid quantity")
	}

	var out model.CartItem

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := r.lockByOwnerAndProduct(tx, owner, productID)
		if err == nil {
			return r.addQuantity(tx, item, addQty, &out)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		//無い場合は新規作成
		newItem := model.CartItem{
			ProductID: productID,
			Quantity:  addQty,
		}
		if owner.IsUser() {
			uid := owner.UserID
			newItem.UserID = &uid
		} else {
			sk := owner.SessionKey
			newItem.SessionKey = &sk
		}

		if createErr := tx.Create(&newItem).Error; createErr != nil {
			if !isUniqueViolation(createErr) {
				return createErr
			}
			//同時に入った行をUPDATEし直す
			item, retryErr := r.lockByOwnerAndProduct(tx, owner, productID)
			if retryErr != nil {
				return createErr
			}
			return r.addQuantity(tx, item, addQty, &out)
		}

		out = newItem
		return nil
	})

	if err != nil {
		return model.CartItem{}, err
	}
	return out, nil
}

func (r *CartGormRepository) lockByOwnerAndProduct(tx *gorm.DB, owner model.CartOwner, productID int64) (model.CartItem, error) {
	var item model.CartItem
	err := ownerWhere(tx.Clauses(clause.Locking{Strength: "UPDATE"}), owner).
		Where("product_id = ?", productID).
		First(&item).Error
	return item, err
}

func (r *CartGormRepository) addQuantity(tx *gorm.DB, item model.CartItem, addQty int64, out *model.CartItem) error {
	newQty := item.Quantity + addQty

	res := tx.Model(&model.CartItem{}).
		Where("id = ?", item.ID).
		Update("quantity", newQty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}

	item.Quantity = newQty
	*out = item
	return nil
}

// 明細の数量を更新（owner一致の行だけ）
func (r *CartGormRepository) UpdateQuantity(ctx context.Context, owner model.CartOwner, cartItemID int64, qty int64) error {
	res := ownerWhere(r.db.WithContext(ctx).Model(&model.CartItem{}), owner).
		Where("id = ?", cartItemID).
		Update("quantity", qty)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除。既に無ければ何もしない（冪等）。
func (r *CartGormRepository) DeleteByID(ctx context.Context, owner model.CartOwner, cartItemID int64) error {
	res := ownerWhere(r.db.WithContext(ctx), owner).
		Where("id = ?", cartItemID).
		Delete(&model.CartItem{})
	return res.Error
}

// 指定した明細だけ削除（注文確定時のクリア）。
// owner条件も掛けて他人の行を消せないようにする。
func (r *CartGormRepository) DeleteByIDs(ctx context.Context, owner model.CartOwner, cartItemIDs []int64) error {
	if len(cartItemIDs) == 0 {
		return nil
	}
	return ownerWhere(r.db.WithContext(ctx), owner).
		Where("id IN ?", cartItemIDs).
		Delete(&model.CartItem{}).Error
}

// セッションカートを会員カートへ。
// セッション側の行をロックして1件ずつ会員側へ加算し、最後にセッション側を消す。
// 実行後はsession_keyの行が残らないので、二重に呼ばれても加算は一度きり。
func (r *CartGormRepository) MergeSessionIntoUser(ctx context.Context, sessionKey string, userID int64) error {
	if sessionKey == "" || userID <= 0 {
		return errors.New("invalid merge arguments")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sessionItems []model.CartItem
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_key = ?", sessionKey).
			Order("id asc").
			Find(&sessionItems).Error; err != nil {
			return err
		}
		if len(sessionItems) == 0 {
			return nil
		}

		owner := model.OwnerUser(userID)
		for _, si := range sessionItems {
			item, err := r.lockByOwnerAndProduct(tx, owner, si.ProductID)
			if err == nil {
				//会員側に同じ商品があれば数量マージ
				var merged model.CartItem
				if err := r.addQuantity(tx, item, si.Quantity, &merged); err != nil {
					return err
				}
				if err := tx.Delete(&model.CartItem{}, si.ID).Error; err != nil {
					return err
				}
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			//無ければ行ごと会員へ付け替え
			res := tx.Model(&model.CartItem{}).
				Where("id = ?", si.ID).
				Updates(map[string]interface{}{
					"user_id":     userID,
					"session_key": nil,
				})
			if res.Error != nil {
				return res.Error
			}
		}

		return nil
	})
}
