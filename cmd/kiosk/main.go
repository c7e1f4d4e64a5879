// Command kiosk drives one self-service booking attempt against a running
// booking API from the terminal: pick free seats, add combos, redeem
// points, and print the payment redirect URL.  It exists for manual
// end-to-end verification of the checkout flow.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/minhvu/cinema-booking/internal/checkout"
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL     = flag.String("api", envOr("KIOSK_API_URL", "http://localhost:8080"), "booking API base URL")
		screeningID = flag.Uint64("screening", 0, "screening id to book")
		seatsArg    = flag.String("seats", "", "comma-separated seat ids; empty picks the first two free seats")
		combosArg   = flag.String("combos", "", "comma-separated combo_id:qty pairs")
		points      = flag.Uint("points", 0, "loyalty points to redeem")
		customerID  = flag.Uint64("customer", 0, "customer id for member checkout")
		token       = flag.String("token", os.Getenv("KIOSK_TOKEN"), "bearer token for member checkout")
		mirrorDir   = flag.String("mirror", envOr("KIOSK_MIRROR_DIR", ".kiosk"), "directory for the reload mirror")
	)
	flag.Parse()
	if *screeningID == 0 {
		log.Fatal("usage: kiosk -screening <id> [-seats 1,2] [-combos 3:2] [-points 50]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := checkout.NewClient(*baseURL, *token)
	store, err := checkout.NewFileStore(*mirrorDir)
	if err != nil {
		log.Fatalf("mirror store: %v", err)
	}

	opts := []checkout.ControllerOption{}
	if *customerID != 0 {
		opts = append(opts, checkout.WithCustomer(*customerID))
	}
	ctrl := checkout.NewController(client, store, *screeningID, opts...)
	defer ctrl.Close(context.Background(), checkout.CloseTeardown)

	// A previous run may have left a live session behind.
	if restored, err := ctrl.Restore(ctx); err != nil {
		log.Printf("restore failed, starting fresh: %v", err)
	} else if restored {
		log.Printf("resumed session %s at step %s", ctrl.BookingID(), ctrl.Step())
	}

	if ctrl.Step() == checkout.StepSelectingSeats {
		seatIDs, err := chooseSeats(ctx, client, *screeningID, *seatsArg)
		if err != nil {
			log.Fatalf("seats: %v", err)
		}
		if err := ctrl.SelectSeats(seatIDs); err != nil {
			log.Fatalf("select seats: %v", err)
		}
		if err := ctrl.Advance(ctx); err != nil {
			log.Fatalf("hold seats: %v", err)
		}
		log.Printf("session %s holds seats %v until %s", ctrl.BookingID(), seatIDs, ctrl.Session().ExpiresAt.Format(time.RFC3339))
	}

	if ctrl.Step() == checkout.StepSelectingCombos {
		lines, err := parseCombos(*combosArg)
		if err != nil {
			log.Fatalf("combos: %v", err)
		}
		if err := ctrl.SelectCombos(lines); err != nil {
			log.Fatalf("select combos: %v", err)
		}
		if err := ctrl.Advance(ctx); err != nil {
			log.Fatalf("commit combos: %v", err)
		}
		log.Printf("subtotal %d cents", ctrl.Session().SubtotalCents)
	}

	if ctrl.Step() == checkout.StepConfirmingOrder {
		if *points > 0 {
			if err := ctrl.RequestPoints(uint32(*points)); err != nil {
				log.Fatalf("request points: %v", err)
			}
		}
		if err := ctrl.Advance(ctx); err != nil {
			log.Fatalf("confirm order: %v", err)
		}
		s := ctrl.Session()
		log.Printf("total %d cents after %d cents discount (%d points)", s.TotalCents, s.DiscountCents, s.PointsRedeemed)
	}

	url, err := ctrl.BeginPayment(ctx)
	if err != nil {
		log.Fatalf("begin payment: %v", err)
	}
	fmt.Println(url)
}

// chooseSeats parses an explicit seat list or grabs the first two free
// seats from the map.
func chooseSeats(ctx context.Context, client *checkout.Client, screeningID uint64, arg string) ([]uint64, error) {
	if arg != "" {
		return parseIDList(arg)
	}
	seatMap, err := client.FetchSeatMap(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	var picked []uint64
	for _, s := range seatMap.Seats {
		if s.Status == "FREE" {
			picked = append(picked, s.SeatID)
			if len(picked) == 2 {
				break
			}
		}
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("no free seats for screening %d", screeningID)
	}
	return picked, nil
}

func parseIDList(arg string) ([]uint64, error) {
	var ids []uint64
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseCombos(arg string) ([]checkout.ComboLine, error) {
	if arg == "" {
		return nil, nil
	}
	var lines []checkout.ComboLine
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, qty, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("bad combo %q, want id:qty", part)
		}
		comboID, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad combo id %q", id)
		}
		quantity, err := strconv.ParseUint(qty, 10, 32)
		if err != nil || quantity == 0 {
			return nil, fmt.Errorf("bad quantity %q", qty)
		}
		lines = append(lines, checkout.ComboLine{ComboID: comboID, Quantity: uint32(quantity)})
	}
	return lines, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
