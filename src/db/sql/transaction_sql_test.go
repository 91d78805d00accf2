package db

import (
	"testing"

	"spendwatch-server/src/models"

	"github.com/stretchr/testify/assert"
)

func strp(s string) *string { return &s }

func TestMatchMerchantHistory(t *testing.T) {
	candidates := []models.Transaction{
		{ID: "explicit", Merchant: strp("Whole Foods"), Description: "anything"},
		{ID: "described", Description: "POS WHOLE FOODS #1234"},
		{ID: "substring", Description: "WHOLE FOODS MARKET 88"},
		{ID: "other", Merchant: strp("Trader Joe's"), Description: "POS WHOLE FOODS"},
		{ID: "short", Merchant: strp("WF"), Description: "WHOLE FOODS CA"},
		{ID: "unresolvable", Description: "#12"},
	}

	got := matchMerchantHistory(candidates, "wholefoods")

	var ids []string
	for _, t := range got {
		ids = append(ids, t.ID)
	}
	assert.Equal(t, []string{"explicit", "described", "short"}, ids)
}

func TestMatchMerchantHistory_Empty(t *testing.T) {
	assert.Empty(t, matchMerchantHistory(nil, "wholefoods"))
}
