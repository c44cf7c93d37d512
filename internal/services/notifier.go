package services

import (
	"context"
	"database/sql"
	"log"
	"time"

	"firebase.google.com/go/messaging"

	"raplifeBack/internal/purchase"
	"raplifeBack/internal/purchase/fsm"
	"raplifeBack/internal/ws"
	"raplifeBack/utils"
)

// StoreNotifier fans resolved purchase attempts out to the player's open
// websocket and, for succeeded purchases, to the device via FCM. Both pushes
// happen after the settlement transaction committed and neither can fail the
// purchase.
type StoreNotifier struct {
	Hub      *ws.StoreHub
	FCM      *messaging.Client // nil when push is not configured
	Receipts *utils.ReceiptArchive // nil when archiving is not configured
	DB       *sql.DB
	ErrorLog *log.Logger
}

func (n *StoreNotifier) AttemptResolved(playerID int, attempt purchase.Attempt) {
	if n.Hub != nil {
		n.Hub.Push(playerID, ws.Event{Type: ws.EventAttemptResolved, Payload: attempt})
		if attempt.Status == fsm.StatusSucceeded {
			n.Hub.Push(playerID, ws.Event{Type: ws.EventEntitlementsChanged})
		}
	}
	if attempt.Status != fsm.StatusSucceeded {
		return
	}
	if n.Receipts != nil && attempt.Receipt != "" {
		go func() {
			if err := n.Receipts.StoreReceipt(playerID, attempt.TransactionID, []byte(attempt.Receipt)); err != nil {
				n.ErrorLog.Printf("archive receipt %s: %v", attempt.TransactionID, err)
			}
		}()
	}
	if n.FCM != nil {
		go n.pushFCM(playerID, attempt)
	}
}

func (n *StoreNotifier) RewardCredited(playerID int, amount int64) {
	if n.Hub != nil {
		n.Hub.Push(playerID, ws.Event{Type: ws.EventRewardCredited, Payload: map[string]int64{"amount": amount}})
	}
}

func (n *StoreNotifier) pushFCM(playerID int, attempt purchase.Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	token, err := n.deviceToken(ctx, playerID)
	if err != nil || token == "" {
		return
	}
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: "Purchase complete",
			Body:  attempt.Item.Title,
		},
		Data: map[string]string{
			"type":       "purchase_succeeded",
			"product_id": attempt.Item.ID,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	}
	if _, err := n.FCM.Send(ctx, msg); err != nil {
		n.ErrorLog.Printf("fcm push to player %d: %v", playerID, err)
	}
}

func (n *StoreNotifier) deviceToken(ctx context.Context, playerID int) (string, error) {
	var token string
	err := n.DB.QueryRowContext(ctx, `SELECT token FROM device_tokens WHERE player_id = ? ORDER BY id DESC LIMIT 1`, playerID).Scan(&token)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return token, nil
}
