package access

import (
	"context"
	"testing"

	"github.com/valtero/relaybot/testutil"
)

func TestOwnerAlwaysAuthorized(t *testing.T) {
	db := testutil.SetupTestDB(t)
	list := &List{DB: db, OwnerID: 999001}
	ok, err := list.IsAuthorized(context.Background(), 999001)
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if !ok {
		t.Error("owner should be authorized without a list entry")
	}
}

func TestAddIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	list := &List{DB: db, OwnerID: 999002}
	const uid = int64(770001)
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM allowed_users WHERE user_id=$1`, uid)
	})

	res, err := list.Add(ctx, uid)
	if err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if res != Added {
		t.Errorf("first Add = %v, want Added", res)
	}
	res, err = list.Add(ctx, uid)
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if res != AlreadyPresent {
		t.Errorf("second Add = %v, want AlreadyPresent", res)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM allowed_users WHERE user_id=$1`, uid).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one row for %d, got %d", uid, count)
	}

	ok, err := list.IsAuthorized(ctx, uid)
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if !ok {
		t.Error("added user should be authorized")
	}
}

func TestRemoveNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	list := &List{DB: db, OwnerID: 999003}

	res, err := list.Remove(ctx, 770999)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if res != NotFound {
		t.Errorf("Remove of absent id = %v, want NotFound", res)
	}
}

func TestRemoveThenUnauthorized(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	list := &List{DB: db, OwnerID: 999004}
	const uid = int64(770002)
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM allowed_users WHERE user_id=$1`, uid)
	})

	if _, err := list.Add(ctx, uid); err != nil {
		t.Fatalf("Add: %v", err)
	}
	res, err := list.Remove(ctx, uid)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if res != Removed {
		t.Errorf("Remove = %v, want Removed", res)
	}
	ok, err := list.IsAuthorized(ctx, uid)
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if ok {
		t.Error("removed user should not be authorized")
	}
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	list := &List{DB: db, OwnerID: 999005}
	ids := []int64{770101, 770102, 770103}
	t.Cleanup(func() {
		for _, id := range ids {
			_, _ = db.ExecContext(context.Background(), `DELETE FROM allowed_users WHERE user_id=$1`, id)
		}
	})

	for _, id := range ids {
		if _, err := list.Add(ctx, id); err != nil {
			t.Fatalf("Add(%d): %v", id, err)
		}
	}
	snap, err := list.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	// Other tests may have rows in the table; verify relative order of ours.
	positions := map[int64]int{}
	for i, id := range snap {
		positions[id] = i
	}
	for i := 1; i < len(ids); i++ {
		prev, okPrev := positions[ids[i-1]]
		cur, okCur := positions[ids[i]]
		if !okPrev || !okCur {
			t.Fatalf("snapshot missing inserted ids: %v", snap)
		}
		if prev >= cur {
			t.Errorf("snapshot order violated: %d before %d", ids[i], ids[i-1])
		}
	}
}
