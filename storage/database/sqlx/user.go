package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/user"
)

const userColumns = "id, nombre, email, password_hash, estado, rol, area_id, created_at, updated_at, last_login"

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo userRepository) scan(row interface{ Scan(...interface{}) error }) (user.User, error) {
	var usr user.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&usr.ID, &usr.Nombre, &usr.Email, &usr.PasswordHash, &usr.Estado, &usr.Rol,
		&usr.AreaID, &usr.CreatedAt, &usr.UpdatedAt, &lastLogin,
	)
	if err != nil {
		return user.User{}, err
	}
	usr.LastLogin = lastLogin.Time
	return usr, nil
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	query := "SELECT EXISTS (SELECT 1 FROM usuario WHERE email = ?"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += " AND id NOT IN (?)"
		args = append(args, ids)
	}
	query += ")"

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "building user uniqueness query")
	}

	var exists bool
	err = repo.getExec(exec).QueryRowContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), inArgs...).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO usuario (id, nombre, email, password_hash, estado, rol, area_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		usr.ID, usr.Nombre, usr.Email, usr.PasswordHash, usr.Estado, usr.Rol, usr.AreaID,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		usr, err := repo.scan(exe.QueryRowContext(ctx,
			"SELECT "+userColumns+" FROM usuario WHERE id = $1", filter.ID))
		if err != nil {
			return user.User{}, repo.trapNoRowsErr(err, "finding user by ID")
		}
		return usr, nil
	case filter.Email != "":
		usr, err := repo.scan(exe.QueryRowContext(ctx,
			"SELECT "+userColumns+" FROM usuario WHERE LOWER(email) = LOWER($1)", filter.Email))
		if err != nil {
			return user.User{}, repo.trapNoRowsErr(err, "finding user by email")
		}
		return usr, nil
	case filter.AreaID != "":
		usr, err := repo.scan(exe.QueryRowContext(ctx,
			"SELECT "+userColumns+" FROM usuario WHERE area_id = $1 AND rol = $2",
			filter.AreaID, user.RoleUsuario))
		if err != nil {
			return user.User{}, repo.trapNoRowsErr(err, "finding user by area")
		}
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	query := "SELECT " + userColumns + " FROM usuario"
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			conds = append(conds, "(nombre ILIKE ? OR email ILIKE ?)")
			args = append(args, "%"+filter.Search+"%")
		}
		if filter.Rol != "" {
			args = append(args, filter.Rol)
			conds = append(conds, "rol = ?")
		}
		if filter.Estado != "" {
			args = append(args, filter.Estado)
			conds = append(conds, "estado = ?")
		}
		if filter.AreaID != "" {
			args = append(args, filter.AreaID)
			conds = append(conds, "area_id = ?")
		}
		if !filter.CreatedFrom.IsZero() {
			args = append(args, filter.CreatedFrom.UTC())
			conds = append(conds, "created_at >= ?")
		}
		if !filter.CreatedTo.IsZero() {
			args = append(args, filter.CreatedTo.UTC())
			conds = append(conds, "created_at <= ?")
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		query += " ORDER BY created_at DESC"
	}

	rows, err := repo.getExec(exec).QueryContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	defer func() { _ = rows.Close() }()

	users := make([]user.User, 0)
	for rows.Next() {
		usr, err := repo.scan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning user")
		}
		users = append(users, usr)
	}
	return users, errors.Wrap(rows.Err(), "querying users")
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	var lastLogin sql.NullTime
	if !usr.LastLogin.IsZero() {
		lastLogin = sql.NullTime{Time: usr.LastLogin.UTC(), Valid: true}
	}
	_, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE usuario
		 SET nombre = $2, email = $3, password_hash = $4, estado = $5, rol = $6, area_id = $7,
		     updated_at = $8, last_login = $9
		 WHERE id = $1`,
		usr.ID, usr.Nombre, usr.Email, usr.PasswordHash, usr.Estado, usr.Rol, usr.AreaID,
		usr.UpdatedAt.UTC(), lastLogin,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	query, args, err := sqlx.In("DELETE FROM usuario WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "building user delete query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}
