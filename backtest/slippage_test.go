package backtest

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
)

func TestFixedBpsAsymmetricBySide(t *testing.T) {
	model := FixedBps{EntryBps: decimal.NewFromInt(10), ExitBps: decimal.NewFromInt(5)}
	ref := domain.MoneyFromFloat(100)

	buy := model.Apply(domain.SideBuy, ref)
	if buy.String() != "100.1000" {
		t.Fatalf("expected buy fill 100.10 from 10bps slippage, got %s", buy)
	}

	sell := model.Apply(domain.SideSell, ref)
	if sell.String() != "99.9500" {
		t.Fatalf("expected sell fill 99.95 from 5bps slippage, got %s", sell)
	}
}

func TestSpreadBasedFillsBetweenMidAndFarSide(t *testing.T) {
	model := SpreadBased{Bid: domain.MoneyFromFloat(99), Ask: domain.MoneyFromFloat(101), F: decimal.NewFromFloat(0.5)}
	buy := model.Apply(domain.SideBuy, domain.ZeroMoney)
	// mid=100, f=0.5 -> halfway to ask(101) -> 100.5
	if buy.String() != "100.5000" {
		t.Fatalf("expected 100.50, got %s", buy)
	}
	sell := model.Apply(domain.SideSell, domain.ZeroMoney)
	if sell.String() != "99.5000" {
		t.Fatalf("expected 99.50, got %s", sell)
	}
}

func TestVolumeImpactIncreasesWithParticipation(t *testing.T) {
	model := VolumeImpact{
		Coefficient: decimal.NewFromFloat(0.1),
		Exponent:    1.0,
		OrderSize:   domain.QuantityFromFloat(1000),
		AvgVolume:   domain.QuantityFromFloat(10000),
	}
	ref := domain.MoneyFromFloat(100)
	buy := model.Apply(domain.SideBuy, ref)
	// participation=0.1, impact=0.1*0.1=0.01 -> fill = 100*1.01 = 101
	if buy.String() != "101.0000" {
		t.Fatalf("expected 101.00, got %s", buy)
	}
}

func TestVolumeImpactZeroAvgVolumeReturnsReference(t *testing.T) {
	model := VolumeImpact{Coefficient: decimal.NewFromFloat(0.1), Exponent: 1.0, OrderSize: domain.QuantityFromFloat(100), AvgVolume: domain.ZeroQuantity}
	ref := domain.MoneyFromFloat(50)
	got := model.Apply(domain.SideBuy, ref)
	if !got.Equal(ref) {
		t.Fatalf("expected reference price unchanged with zero avg volume, got %s", got)
	}
}
