package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is applied at startup. Statements are idempotent so redeploys are
// safe without a migration tool.
const Schema = `
CREATE TABLE IF NOT EXISTS carts (
	id               BIGSERIAL PRIMARY KEY,
	user_id          BIGINT NOT NULL UNIQUE,
	discount_code_id BIGINT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cart_items (
	id                     BIGSERIAL PRIMARY KEY,
	cart_id                BIGINT NOT NULL REFERENCES carts (id) ON DELETE CASCADE,
	item_kind              TEXT NOT NULL,
	item_id                BIGINT NOT NULL,
	status                 TEXT NOT NULL DEFAULT 'owned',
	reserved_order_id      UUID,
	reserved_order_item_id BIGINT,
	added_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (cart_id, item_kind, item_id)
);

CREATE TABLE IF NOT EXISTS orders (
	id                BIGSERIAL PRIMARY KEY,
	order_id          UUID NOT NULL UNIQUE,
	user_id           BIGINT NOT NULL,
	subtotal          BIGINT NOT NULL,
	discount_code_id  BIGINT,
	discount_amount   BIGINT NOT NULL DEFAULT 0,
	total             BIGINT NOT NULL,
	status            TEXT NOT NULL,
	gateway_authority TEXT NOT NULL DEFAULT '',
	gateway_txn_id    TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	paid_at           TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS orders_user_idx ON orders (user_id, id DESC);
CREATE INDEX IF NOT EXISTS orders_authority_idx ON orders (gateway_authority) WHERE gateway_authority <> '';

CREATE TABLE IF NOT EXISTS order_items (
	id          BIGSERIAL PRIMARY KEY,
	order_id    BIGINT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	item_kind   TEXT NOT NULL,
	item_id     BIGINT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS order_items_order_idx ON order_items (order_id);

CREATE TABLE IF NOT EXISTS payment_batches (
	id                BIGSERIAL PRIMARY KEY,
	batch_id          UUID NOT NULL UNIQUE,
	user_id           BIGINT NOT NULL,
	total             BIGINT NOT NULL,
	status            TEXT NOT NULL,
	gateway_authority TEXT NOT NULL DEFAULT '',
	gateway_txn_id    TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	paid_at           TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS payment_batches_authority_idx ON payment_batches (gateway_authority) WHERE gateway_authority <> '';

CREATE TABLE IF NOT EXISTS batch_orders (
	batch_id BIGINT NOT NULL REFERENCES payment_batches (id) ON DELETE CASCADE,
	order_id BIGINT NOT NULL REFERENCES orders (id),
	PRIMARY KEY (batch_id, order_id)
);
CREATE INDEX IF NOT EXISTS batch_orders_order_idx ON batch_orders (order_id);

CREATE TABLE IF NOT EXISTS discount_codes (
	id                 BIGSERIAL PRIMARY KEY,
	code               TEXT NOT NULL UNIQUE,
	active             BOOLEAN NOT NULL DEFAULT TRUE,
	percent            BIGINT NOT NULL DEFAULT 0,
	amount             BIGINT NOT NULL DEFAULT 0,
	valid_from         TIMESTAMPTZ,
	valid_to           TIMESTAMPTZ,
	min_order_amount   BIGINT NOT NULL DEFAULT 0,
	max_uses           BIGINT NOT NULL DEFAULT 0,
	times_used         BIGINT NOT NULL DEFAULT 0,
	max_uses_per_user  BIGINT NOT NULL DEFAULT 0,
	target_kind        TEXT,
	target_id          BIGINT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS discount_redemptions (
	code_id  BIGINT NOT NULL REFERENCES discount_codes (id),
	user_id  BIGINT NOT NULL,
	order_id BIGINT NOT NULL REFERENCES orders (id),
	PRIMARY KEY (code_id, user_id, order_id)
);

CREATE TABLE IF NOT EXISTS presentations (
	id          BIGSERIAL PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	is_paid     BOOLEAN NOT NULL DEFAULT FALSE,
	price       BIGINT NOT NULL DEFAULT 0,
	active      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS solo_competitions (
	id          BIGSERIAL PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	is_paid     BOOLEAN NOT NULL DEFAULT FALSE,
	price       BIGINT NOT NULL DEFAULT 0,
	active      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS group_competitions (
	id                BIGSERIAL PRIMARY KEY,
	description       TEXT NOT NULL DEFAULT '',
	is_paid           BOOLEAN NOT NULL DEFAULT FALSE,
	price_per_group   BIGINT NOT NULL DEFAULT 0,
	active            BOOLEAN NOT NULL DEFAULT TRUE,
	requires_approval BOOLEAN NOT NULL DEFAULT FALSE
);

-- A team has no price of its own; it inherits the parent competition's
-- per-group price and approval policy.
CREATE TABLE IF NOT EXISTS competition_teams (
	id             BIGSERIAL PRIMARY KEY,
	competition_id BIGINT NOT NULL REFERENCES group_competitions (id),
	description    TEXT NOT NULL DEFAULT '',
	active         BOOLEAN NOT NULL DEFAULT TRUE,
	leader_id      BIGINT NOT NULL,
	status         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
	user_id         BIGINT NOT NULL,
	presentation_id BIGINT NOT NULL REFERENCES presentations (id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, presentation_id)
);

CREATE TABLE IF NOT EXISTS registrations (
	user_id        BIGINT NOT NULL,
	competition_id BIGINT NOT NULL REFERENCES solo_competitions (id),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, competition_id)
);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
