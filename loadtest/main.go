// Standalone stress driver for the messaging API. Registers user pairs,
// has each side spam direct messages at the other, then spot-checks the
// conversation and unread counts.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

const (
	BaseURL   = "http://localhost:8080"
	PairCount = 100 // ⚠️ Start small. 100 pairs = 200 users.
	MsgCount  = 20  // Messages per user
)

type authResponse struct {
	Token string `json:"access_token"`
	ID    int    `json:"id"`
}

type sendResponse struct {
	Success   bool `json:"success"`
	MessageID int  `json:"message_id"`
}

func main() {
	log.Printf("🔥 STARTING STRESS TEST: %d users, %d messages each...", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("✅ LOAD TEST COMPLETE")
}

func runPair(pairID int) {
	userA := fmt.Sprintf("u_%d_a", pairID)
	userB := fmt.Sprintf("u_%d_b", pairID)
	pass := "password123"

	tokenA, _ := authenticate(userA, pass)
	tokenB, idB := authenticate(userB, pass)
	_, idA := authenticate(userA, pass)

	if tokenA == "" || tokenB == "" {
		return // Failed auth
	}

	var msgWg sync.WaitGroup
	msgWg.Add(2)
	go spamMessages(&msgWg, tokenA, idB, userA)
	go spamMessages(&msgWg, tokenB, idA, userB)
	msgWg.Wait()

	// Spot-check: loading the conversation should flip B's unread counter
	getJSON(tokenB, fmt.Sprintf("/api/conversations/%d/messages", idA))
	getJSON(tokenB, "/api/messages/unread-count")
}

func spamMessages(wg *sync.WaitGroup, token string, recipientID int, who string) {
	defer wg.Done()
	for i := 0; i < MsgCount; i++ {
		// Unique content per iteration, otherwise the dedup window folds
		// the whole burst into one message
		body := map[string]any{
			"recipient_id": recipientID,
			"content":      fmt.Sprintf("[%s] message %d", who, i),
		}
		resp, err := postJSON(token, "/api/messages", body)
		if err != nil {
			log.Printf("❌ Send failed [%s]: %v", who, err)
			return
		}
		var data sendResponse
		json.NewDecoder(resp.Body).Decode(&data)
		resp.Body.Close()
		if !data.Success {
			log.Printf("❌ Send rejected [%s] msg %d", who, i)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// authenticate registers (ignores error if exists) and logs in
func authenticate(username, password string) (string, int) {
	postJSON("", "/register", map[string]string{
		"username":   username,
		"password":   password,
		"first_name": "Load",
		"last_name":  "Tester",
	})

	resp, err := postJSON("", "/login", map[string]string{"username": username, "password": password})
	if err != nil {
		log.Printf("❌ Login failed [%s]: %v", username, err)
		return "", 0
	}
	defer resp.Body.Close()

	var data authResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.Token, data.ID
}

func postJSON(token, path string, payload any) (*http.Response, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}

func getJSON(token, path string) {
	req, err := http.NewRequest(http.MethodGet, BaseURL+path, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
