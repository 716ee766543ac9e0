package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/domain/model"

	"github.com/sony/gobreaker/v2"
)

const defaultTimeout = 10 * time.Second

// MercadoPagoClient はMercado Pago REST APIのGateway実装。
// 全呼び出しにタイムアウトを掛け、連続失敗時はcircuit breakerで遮断する。
type MercadoPagoClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[[]byte]
}

// DI。baseURLでsandbox/本番を切り替える。
func NewMercadoPagoClient(baseURL string, accessToken string) *MercadoPagoClient {
	settings := gobreaker.Settings{
		Name:    "mercadopago",
		Timeout: 30 * time.Second,
	}

	return &MercadoPagoClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		breaker:     gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

type mpPayer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
}

type mpCreatePaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	PaymentMethodID   string  `json:"payment_method_id"`
	Payer             mpPayer `json:"payer"`
	ExternalReference string  `json:"external_reference"`
	NotificationURL   string  `json:"notification_url,omitempty"`
}

type mpTransactionData struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url"`
}

type mpPaymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	ExternalReference  string      `json:"external_reference"`
	PointOfInteraction struct {
		TransactionData mpTransactionData `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type mpPreferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type mpBackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type mpCreatePreferenceRequest struct {
	Items             []mpPreferenceItem `json:"items"`
	Payer             mpPayer            `json:"payer"`
	ExternalReference string             `json:"external_reference"`
	NotificationURL   string             `json:"notification_url,omitempty"`
	BackURLs          mpBackURLs         `json:"back_urls"`
	AutoReturn        string             `json:"auto_return,omitempty"`
}

type mpPreferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type mpErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// centavos → MPのdecimal amount
func amountFromCents(cents int64) float64 {
	return float64(cents) / 100
}

func (c *MercadoPagoClient) CreatePixPayment(ctx context.Context, in CreatePixInput) (PixPayment, error) {
	reqBody := mpCreatePaymentRequest{
		TransactionAmount: amountFromCents(in.AmountCents),
		PaymentMethodID:   "pix",
		Payer: mpPayer{
			Email:     in.Payer.Email,
			FirstName: in.Payer.Name,
		},
		ExternalReference: in.ExternalRef,
		NotificationURL:   in.NotifyURL,
	}

	// 同じ注文のリトライはMP側でも1決済に畳まれるようkeyを固定する
	idemKey := "order-" + in.ExternalRef

	raw, err := c.doJSON(ctx, http.MethodPost, "/v1/payments", reqBody, idemKey)
	if err != nil {
		return PixPayment{}, err
	}

	var resp mpPaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return PixPayment{}, &GatewayError{Message: "unexpected response body", Err: err}
	}

	return PixPayment{
		TransactionID: resp.ID.String(),
		Status:        translateStatus(resp.Status),
		QRCode:        resp.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:  resp.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:     resp.PointOfInteraction.TransactionData.TicketURL,
	}, nil
}

func (c *MercadoPagoClient) CreatePreference(ctx context.Context, in CreatePreferenceInput) (Preference, error) {
	items := make([]mpPreferenceItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, mpPreferenceItem{
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: amountFromCents(it.UnitPriceCents),
		})
	}

	reqBody := mpCreatePreferenceRequest{
		Items: items,
		Payer: mpPayer{
			Email:     in.Payer.Email,
			FirstName: in.Payer.Name,
		},
		ExternalReference: in.ExternalRef,
		NotificationURL:   in.NotifyURL,
		BackURLs: mpBackURLs{
			Success: in.BackURLs.Success,
			Failure: in.BackURLs.Failure,
			Pending: in.BackURLs.Pending,
		},
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/checkout/preferences", reqBody, "pref-"+in.ExternalRef)
	if err != nil {
		return Preference{}, err
	}

	var resp mpPreferenceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Preference{}, &GatewayError{Message: "unexpected response body", Err: err}
	}

	return Preference{
		TransactionID: resp.ID,
		InitPointURL:  resp.InitPoint,
	}, nil
}

func (c *MercadoPagoClient) GetPayment(ctx context.Context, transactionID string) (PaymentInfo, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/v1/payments/"+transactionID, nil, "")
	if err != nil {
		return PaymentInfo{}, err
	}

	var resp mpPaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return PaymentInfo{}, &GatewayError{Message: "unexpected response body", Err: err}
	}

	return PaymentInfo{
		TransactionID: resp.ID.String(),
		Status:        translateStatus(resp.Status),
		ExternalRef:   resp.ExternalReference,
		Raw:           raw,
	}, nil
}

func (c *MercadoPagoClient) CancelPayment(ctx context.Context, transactionID string) error {
	body := map[string]string{"status": "cancelled"}
	_, err := c.doJSON(ctx, http.MethodPut, "/v1/payments/"+transactionID, body, "")
	return err
}

// 外部の状態文字列→内部enum。ここより外に外部語彙は出さない。
func translateStatus(s string) model.PaymentStatus {
	switch s {
	case "approved":
		return model.PaymentStatusApproved
	case "pending", "in_process", "authorized":
		return model.PaymentStatusPending
	case "rejected":
		return model.PaymentStatusRejected
	case "cancelled", "expired":
		return model.PaymentStatusCancelled
	default:
		return model.PaymentStatusUnknown
	}
}

// HTTP呼び出しの共通部。breaker越しに実行し、非2xxはGatewayErrorに変換する。
func (c *MercadoPagoClient) doJSON(ctx context.Context, method string, path string, body interface{}, idemKey string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &GatewayError{Message: "encode request", Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &GatewayError{Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		res, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &GatewayError{Err: err}
		}
		defer res.Body.Close()

		respBody, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, &GatewayError{StatusCode: res.StatusCode, Message: "read response", Err: err}
		}

		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, &GatewayError{
				StatusCode: res.StatusCode,
				Message:    extractErrorMessage(respBody, res.StatusCode),
			}
		}
		return respBody, nil
	})
	if err != nil {
		var ge *GatewayError
		if errors.As(err, &ge) {
			return nil, ge
		}
		// breaker open等
		return nil, &GatewayError{Message: "circuit breaker", Err: err}
	}

	return raw, nil
}

func extractErrorMessage(body []byte, statusCode int) string {
	var e mpErrorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return fmt.Sprintf("http status %d", statusCode)
}
