package sqlinline

const QSelectUsageCount = `--sql a762af2c-5263-4ecd-ad07-53e881bbe1fb
select count
from usage_counters
where user_id = $1::uuid
  and metric = $2::text
  and period = $3::text
limit 1;
`

const QIncrementUsage = `--sql b9dde787-7b8e-40cc-b7cc-e12e356dfcd3
insert into usage_counters (user_id, metric, period, count, updated_at)
values ($1::uuid, $2::text, $3::text, $4::int, now())
on conflict (user_id, metric, period) do update set
    count = usage_counters.count + excluded.count,
    updated_at = now()
returning count;
`

const QPruneUsageBefore = `--sql a8da333a-e377-4b3a-9ec6-9e826c4e3223
delete from usage_counters
where period < $1::text;
`
