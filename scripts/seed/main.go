package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/rh-console/rh-console/internal/access"
	"github.com/rh-console/rh-console/internal/platform/db"
)

//go:embed schema.sql
var schema string

type seedUser struct {
	email    string
	name     string
	password string
	grant    *access.Grant
}

func main() {
	dsn := getenv("PG_DSN", "postgres://rh:rh@localhost:5432/rh?sslmode=disable")
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, 2)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Applying schema...")
	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	fmt.Println("→ Seeding users and grants...")
	for _, u := range users() {
		if err := db.WithTx(ctx, pool, func(tx pgx.Tx) error { return seed(ctx, tx, u) }); err != nil {
			log.Fatalf("seed %s: %v", u.email, err)
		}
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func users() []seedUser {
	return []seedUser{
		{"admin@rh.local", "Administrador", "admin1234", access.NewGrant(true, nil)},
		{"gestor@rh.local", "Gestor Comercial", "gestor1234", access.NewGrant(false, map[string]access.Capability{
			"dashboard":       {Ver: true},
			"vendedores":      {Ver: true, Editar: true},
			"metas":           {Ver: true, Editar: true, Excluir: true},
			"comissoes":       {Ver: true, Editar: true},
			"lancamentos":     {Ver: true},
			"carregar-vendas": {Ver: true, Editar: true},
			"relatorios":      {Ver: true},
		})},
		{"recrutador@rh.local", "Recrutadora", "recruta1234", access.NewGrant(false, map[string]access.Capability{
			"dashboard":          {Ver: true},
			"analise-curriculos": {Ver: true, Editar: true},
			"banco-talentos":     {Ver: true, Editar: true, Excluir: true},
			"funcionarios":       {Ver: true},
		})},
		{"estagiario@rh.local", "Estagiário", "estagio1234", access.EmptyGrant()},
	}
}

func seed(ctx context.Context, tx pgx.Tx, u seedUser) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO usuarios (id, email, nome, password_hash, ativo)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (email) DO UPDATE SET nome = EXCLUDED.nome, updated_at = NOW()
		RETURNING id`, uuid.New(), u.email, u.name, string(hash)).Scan(&id)
	if err != nil {
		return err
	}
	grant, err := json.Marshal(u.grant)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO usuario_permissoes (usuario_id, permissoes)
		VALUES ($1, $2)
		ON CONFLICT (usuario_id) DO UPDATE SET permissoes = EXCLUDED.permissoes, updated_at = NOW()`, id, grant)
	return err
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
