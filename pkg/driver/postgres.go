package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andrej220/shotgun/pkg/lg"
	"github.com/andrej220/shotgun/pkg/plan"
)

type postgresFields struct {
	DBName   string `validate:"required"`
	DBHost   string `validate:"required"`
	Username string `validate:"required"`
	Password string
}

// Postgres dumps a database with pg_dump on the task host and fetches the
// dump into <target>/<host>/pg_dump.
type Postgres struct {
	*Base
	fields     postgresFields
	targetPath string
}

func NewPostgres(task plan.Task, conf Conf, env Env) (*Postgres, error) {
	base, err := newBase(task, conf, env)
	if err != nil {
		return nil, err
	}
	var f postgresFields
	if f.DBName, err = stringField(task.Object, "dbname"); err != nil {
		return nil, err
	}
	if f.DBHost, err = stringFieldOr(task.Object, "dbhost", "localhost"); err != nil {
		return nil, err
	}
	if f.Username, err = stringFieldOr(task.Object, "username", "postgres"); err != nil {
		return nil, err
	}
	if f.Password, err = stringField(task.Object, "password"); err != nil {
		return nil, err
	}
	if err := validateFields("postgres", f); err != nil {
		return nil, err
	}
	return &Postgres{Base: base, fields: f, targetPath: base.hostPath("pg_dump")}, nil
}

func (p *Postgres) TargetPath() string { return p.targetPath }

// DumpCommand renders the pg_dump invocation writing to file.
func (p *Postgres) DumpCommand(file string) string {
	cmd := fmt.Sprintf("pg_dump -h %s -U %s -w -f %s %s",
		shellQuote(p.fields.DBHost), shellQuote(p.fields.Username), shellQuote(file), shellQuote(p.fields.DBName))
	if p.fields.Password != "" {
		cmd = "PGPASSWORD=" + shellQuote(p.fields.Password) + " " + cmd
	}
	return cmd
}

func (p *Postgres) Snapshot(ctx context.Context) error {
	out, err := p.RunCommand(ctx, "mktemp")
	if err != nil {
		return err
	}
	tmp := strings.TrimSpace(out.Stdout)
	if tmp == "" {
		return errors.New("mktemp returned no path")
	}
	defer func() {
		if _, err := p.RunCommand(context.WithoutCancel(ctx), "rm -f "+shellQuote(tmp)); err != nil {
			p.logger.Warn("remove dump file", lg.String("path", tmp), lg.Err(err))
		}
	}()

	out, err = p.RunCommand(ctx, p.DumpCommand(tmp))
	if err != nil {
		return err
	}
	if out.ReturnCode == nil || *out.ReturnCode != 0 {
		p.logger.Warn("pg_dump did not finish cleanly",
			lg.String("dbname", p.fields.DBName), lg.String("code", out.code()), lg.String("stderr", out.Stderr))
	}
	return p.Fetch(ctx, tmp, p.targetPath)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
