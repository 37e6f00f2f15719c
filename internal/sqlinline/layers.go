package sqlinline

const QEnsureLayerRecords = `--sql 3b1f6a52-9c0e-4c47-8f0e-6d2b7a9e1c34
create table if not exists layer_records (
  layer_id   text        not null,
  session_id text        not null,
  operation  text        not null,
  url        text        not null,
  public_id  text        not null default '',
  metadata   jsonb       not null default '{}'::jsonb,
  created_at timestamptz not null default now(),
  primary key (session_id, layer_id)
);
`

const QInsertLayer = `--sql 8d4c2e17-5a93-4b6f-a1d0-72e9c3b5f846
insert into layer_records(
  layer_id,
  session_id,
  operation,
  url,
  public_id,
  metadata,
  created_at
) values (
  $1,
  $2,
  $3,
  $4,
  $5,
  $6::jsonb,
  $7
)
on conflict (session_id, layer_id) do update
set url = excluded.url,
    public_id = excluded.public_id,
    metadata = excluded.metadata;
`

const QListLayersBySession = `--sql c7a05e93-1f24-4d8b-b6e2-0a9d4f3c7e15
select
  layer_id,
  session_id,
  operation,
  url,
  public_id,
  metadata,
  created_at
from layer_records
where session_id = $1
order by created_at desc
limit $2::int;
`
