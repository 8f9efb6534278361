package repos

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	applog "leafline/internal/log"
)

// OpenDB connects to the store, ensures the schema and seeds reference data.
// driver is "sqlite" (default) or "postgres".
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	if driver == "" {
		driver = "sqlite"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// every :memory: connection is its own database
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	if err := seedIfEmpty(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	if err := seedPincodes(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed pincodes: %w", err)
	}
	if err := seedDiscounts(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed discounts: %w", err)
	}
	if err := seedUsers(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed users: %w", err)
	}
	return db, nil
}

// TimeLayout is RFC 3339 with fixed microseconds so stored timestamps sort as text.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

func now() string { return time.Now().UTC().Format(TimeLayout) }

const schema = `
CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS brands(
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  category_id TEXT NOT NULL REFERENCES categories(id),
  brand_id TEXT NOT NULL REFERENCES brands(id),
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL CHECK (price >= 0),
  image_url TEXT NOT NULL DEFAULT '',
  active INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);
CREATE INDEX IF NOT EXISTS idx_products_brand    ON products(brand_id);

CREATE TABLE IF NOT EXISTS product_variants(
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL CHECK (price >= 0)
);

CREATE TABLE IF NOT EXISTS combos(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL CHECK (price >= 0),
  active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS blog_posts(
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  excerpt TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL DEFAULT '',
  author TEXT NOT NULL DEFAULT '',
  published_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS carts(
  id TEXT PRIMARY KEY,
  session_id TEXT UNIQUE NOT NULL,
  coupon_code TEXT NOT NULL DEFAULT '',
  lucky_discount NUMERIC NULL,
  updated_at TEXT
);

CREATE TABLE IF NOT EXISTS cart_items(
  cart_id    TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL REFERENCES products(id),
  variant_id TEXT NOT NULL DEFAULT '',
  combo_id   TEXT NOT NULL DEFAULT '',
  qty INTEGER NOT NULL CHECK (qty >= 1),
  created_at TEXT,
  updated_at TEXT,
  PRIMARY KEY (cart_id, product_id, variant_id, combo_id)
);

CREATE TABLE IF NOT EXISTS discounts(
  id TEXT PRIMARY KEY,
  code TEXT NULL,
  name TEXT NOT NULL,
  discount_type TEXT NOT NULL CHECK (discount_type IN ('percentage','fixed_amount','cart_value')),
  value NUMERIC NOT NULL CHECK (value >= 0),
  min_cart_value NUMERIC NULL,
  max_discount_amount NUMERIC NULL,
  applicable_to TEXT NOT NULL DEFAULT 'all' CHECK (applicable_to IN ('all','products','combos','variants')),
  product_ids TEXT NOT NULL DEFAULT '[]',
  combo_ids TEXT NOT NULL DEFAULT '[]',
  variant_ids TEXT NOT NULL DEFAULT '[]',
  valid_from TEXT NULL,
  valid_to TEXT NULL,
  usage_limit INTEGER NULL,
  usage_count INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_discounts_code_nocase ON discounts(LOWER(code));

CREATE TABLE IF NOT EXISTS pincode_lookup(
  pincode TEXT PRIMARY KEY,
  city TEXT NOT NULL,
  state TEXT NOT NULL,
  country TEXT NOT NULL DEFAULT 'India'
);

CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN')),
  created_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS saved_addresses(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  full_name TEXT NOT NULL,
  phone TEXT NOT NULL,
  address_line TEXT NOT NULL,
  pincode TEXT NOT NULL,
  city TEXT NOT NULL,
  state TEXT NOT NULL,
  country TEXT NOT NULL DEFAULT 'India',
  label TEXT NOT NULL DEFAULT 'home',
  is_default INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saved_addresses_user ON saved_addresses(user_id);

CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  user_id TEXT NOT NULL DEFAULT '',
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  address_json TEXT NOT NULL,
  shipping_tier TEXT NOT NULL,
  subtotal NUMERIC NOT NULL,
  shipping_cost NUMERIC NOT NULL,
  lucky_discount NUMERIC NOT NULL,
  coupon_discount NUMERIC NOT NULL,
  total NUMERIC NOT NULL CHECK (total >= 0),
  discount_id TEXT NOT NULL DEFAULT '',
  coupon_code TEXT NOT NULL DEFAULT '',
  payment_method TEXT NOT NULL DEFAULT 'upi',
  transaction_id TEXT NOT NULL UNIQUE,
  payment_status TEXT NOT NULL DEFAULT 'idle',
  status TEXT NOT NULL DEFAULT 'PLACED',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
CREATE INDEX IF NOT EXISTS idx_orders_payment    ON orders(payment_status);

CREATE TABLE IF NOT EXISTS order_items(
  order_id  TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  line_no INTEGER NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL DEFAULT '',
  combo_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  PRIMARY KEY (order_id, line_no)
);
`

func ensureSchema(db *sqlx.DB) error {
	if db.DriverName() == "sqlite" {
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			return err
		}
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w\n%s", err, strings.TrimSpace(stmt))
		}
	}
	return nil
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM categories`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	applog.Info(nil, "seed.catalog", nil)

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO categories(id,slug,name,description) VALUES(?,?,?,?)`, []any{"cat-cigars", "cigars", "Cigars", "Hand rolled premium cigars."}},
		{`INSERT INTO categories(id,slug,name,description) VALUES(?,?,?,?)`, []any{"cat-hookah", "hookah", "Hookah", "Hookahs, bowls and shisha accessories."}},
		{`INSERT INTO categories(id,slug,name,description) VALUES(?,?,?,?)`, []any{"cat-papers", "rolling-papers", "Rolling Papers", "Papers, tips and filters."}},
		{`INSERT INTO categories(id,slug,name,description) VALUES(?,?,?,?)`, []any{"cat-accessories", "accessories", "Accessories", "Lighters, cutters and cases."}},

		{`INSERT INTO brands(id,slug,name,description) VALUES(?,?,?,?)`, []any{"br-havana-leaf", "havana-leaf", "Havana Leaf Co.", "Long filler cigars aged in cedar."}},
		{`INSERT INTO brands(id,slug,name,description) VALUES(?,?,?,?)`, []any{"br-nile", "nile", "Nile Hookah", "Glass and steel hookahs."}},
		{`INSERT INTO brands(id,slug,name,description) VALUES(?,?,?,?)`, []any{"br-drift", "drift", "Drift Papers", "Unbleached rolling papers."}},
		{`INSERT INTO brands(id,slug,name,description) VALUES(?,?,?,?)`, []any{"br-ember", "ember", "Ember Works", "Windproof lighters."}},

		{`INSERT INTO products(id,slug,category_id,brand_id,title,description,price,image_url,active,created_at) VALUES(?,?,?,?,?,?,?,?,1,?)`,
			[]any{"p-robusto", "havana-leaf-robusto-box", "cat-cigars", "br-havana-leaf", "Havana Leaf Robusto (Box of 5)", "Medium bodied robusto with cedar notes.", "1000.00", "/img/p-robusto.jpg", "2024-01-01T00:00:00Z"}},
		{`INSERT INTO products(id,slug,category_id,brand_id,title,description,price,image_url,active,created_at) VALUES(?,?,?,?,?,?,?,?,1,?)`,
			[]any{"p-hookah-classic", "nile-classic-hookah", "cat-hookah", "br-nile", "Nile Classic Hookah", "Stainless stem with a hand blown glass base.", "2499.00", "/img/p-hookah-classic.jpg", "2024-01-02T00:00:00Z"}},
		{`INSERT INTO products(id,slug,category_id,brand_id,title,description,price,image_url,active,created_at) VALUES(?,?,?,?,?,?,?,?,1,?)`,
			[]any{"p-papers-king", "drift-king-size-papers", "cat-papers", "br-drift", "Drift King Size Papers", "32 leaves per booklet.", "120.00", "/img/p-papers-king.jpg", "2024-01-03T00:00:00Z"}},
		{`INSERT INTO products(id,slug,category_id,brand_id,title,description,price,image_url,active,created_at) VALUES(?,?,?,?,?,?,?,?,1,?)`,
			[]any{"p-lighter", "ember-windproof-lighter", "cat-accessories", "br-ember", "Ember Windproof Lighter", "Refillable brass lighter.", "450.00", "/img/p-lighter.jpg", "2024-01-04T00:00:00Z"}},

		{`INSERT INTO product_variants(id,product_id,name,price) VALUES(?,?,?,?)`, []any{"v-hookah-small", "p-hookah-classic", "Small (45 cm)", "1999.00"}},
		{`INSERT INTO product_variants(id,product_id,name,price) VALUES(?,?,?,?)`, []any{"v-hookah-large", "p-hookah-classic", "Large (75 cm)", "3499.00"}},
		{`INSERT INTO combos(id,name,price,active) VALUES(?,?,?,1)`, []any{"c-hookah-starter", "Hookah Starter Combo", "2799.00"}},

		{`INSERT INTO blog_posts(id,slug,title,excerpt,body,author,published_at) VALUES(?,?,?,?,?,?,?)`,
			[]any{"b-cigar-storage", "how-to-store-cigars", "How to store cigars", "Humidity, temperature and cedar.", "Keep cigars at 65 to 70 percent relative humidity.", "Leafline Team", "2024-02-01T00:00:00Z"}},
		{`INSERT INTO blog_posts(id,slug,title,excerpt,body,author,published_at) VALUES(?,?,?,?,?,?,?)`,
			[]any{"b-hookah-setup", "hookah-setup-guide", "Hookah setup guide", "Packing a bowl the right way.", "Fluff the shisha and leave a gap below the foil.", "Leafline Team", "2024-03-01T00:00:00Z"}},
	}
	for _, s := range stmts {
		if _, err := tx.Exec(tx.Rebind(s.q), s.args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// seedPincodes upserts the serviceable pincode table (idempotent).
func seedPincodes(db *sqlx.DB) error {
	rows := []struct{ pin, city, state string }{
		{"400001", "Mumbai", "Maharashtra"},
		{"411001", "Pune", "Maharashtra"},
		{"110001", "New Delhi", "Delhi"},
		{"560001", "Bengaluru", "Karnataka"},
		{"600001", "Chennai", "Tamil Nadu"},
		{"700001", "Kolkata", "West Bengal"},
		{"500001", "Hyderabad", "Telangana"},
		{"380001", "Ahmedabad", "Gujarat"},
	}
	q := db.Rebind(`INSERT INTO pincode_lookup(pincode,city,state,country) VALUES(?,?,?,'India')
		ON CONFLICT(pincode) DO NOTHING`)
	for _, r := range rows {
		if _, err := db.Exec(q, r.pin, r.city, r.state); err != nil {
			return err
		}
	}
	return nil
}

// seedDiscounts inserts the launch promotions when they are missing (idempotent).
func seedDiscounts(db *sqlx.DB) error {
	type d struct {
		id, code, name, typ, value  string
		minCart, maxAmount          any
		scope, productIDs           string
		validFrom, validTo          any
		usageLimit                  any
		usageCount                  int
		createdAt                   string
	}
	rows := []d{
		{"d-save10", "SAVE10", "Save 10%", "percentage", "10", nil, nil, "all", "[]", nil, nil, nil, 0, "2024-01-01T00:00:00Z"},
		{"d-welcome50", "WELCOME50", "Welcome ₹50 off", "fixed_amount", "50", "500", nil, "all", "[]", nil, nil, nil, 0, "2024-01-02T00:00:00Z"},
		{"d-hookah15", "HOOKAH15", "15% off hookahs", "percentage", "15", nil, "300", "products", `["p-hookah-classic"]`, nil, nil, nil, 0, "2024-01-03T00:00:00Z"},
		{"d-first100", "FIRST100", "First hundred orders", "fixed_amount", "100", nil, nil, "all", "[]", nil, nil, 5, 5, "2024-01-04T00:00:00Z"},
		{"d-newyear", "NEWYEAR20", "New Year 2020", "percentage", "20", nil, nil, "all", "[]", "2020-01-01T00:00:00Z", "2020-01-31T23:59:59Z", nil, 0, "2024-01-05T00:00:00Z"},
		{"d-bigcart", "", "Big cart bonus", "percentage", "5", "5000", "500", "all", "[]", nil, nil, nil, 0, "2024-01-06T00:00:00Z"},
	}
	q := db.Rebind(`
		INSERT INTO discounts(id,code,name,discount_type,value,min_cart_value,max_discount_amount,
		  applicable_to,product_ids,valid_from,valid_to,usage_limit,usage_count,is_active,created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,1,?)
		ON CONFLICT(id) DO NOTHING`)
	for _, r := range rows {
		var code any = r.code
		if r.code == "" {
			code = nil
		}
		if _, err := db.Exec(q, r.id, code, r.name, r.typ, r.value, r.minCart, r.maxAmount,
			r.scope, r.productIDs, r.validFrom, r.validTo, r.usageLimit, r.usageCount, r.createdAt); err != nil {
			return err
		}
	}
	return nil
}

// seedUsers ensures two USERs and one ADMIN exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role string
	}
	users := []u{
		{"u-asha", "asha@leafline.test", "Asha", "USER"},
		{"u-ravi", "ravi@leafline.test", "Ravi", "USER"},
		{"u-admin", "admin@leafline.test", "Admin", "ADMIN"},
	}

	var have int
	if err := db.Get(&have, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if have >= len(users) {
		return nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	q := tx.Rebind(`
		INSERT INTO users(id,email,name,password_hash,role,created_at)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(email) DO NOTHING`)
	for _, x := range users {
		if _, err := tx.Exec(q, x.ID, x.Email, x.Name, string(h), x.Role, now()); err != nil {
			return err
		}
	}
	return tx.Commit()
}
